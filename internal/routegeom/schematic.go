// Package routegeom turns station sequences into metro-style schematic
// polylines and computes the parallel-corridor layout that lets
// overlapping routes render as separated bands.
package routegeom

import (
	"math"

	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// Params bundles the geometry thresholds. All distances are in meters
// unless noted; the corridor pipeline treats them as Mercator plane
// units, which is equivalent for the sub-kilometer scales involved.
type Params struct {
	AlignmentTolerance float64
	SampleDistance     float64
	FineCellSize       float64
	CoarseCellSize     float64
	StraightSpacing    float64
	DiagonalSpacing    float64
	AttachmentRadii    []float64
	Tiers              []DetectionTier
}

// DefaultParams returns the production thresholds.
func DefaultParams() Params {
	return Params{
		AlignmentTolerance: 10,
		SampleDistance:     10,
		FineCellSize:       50,
		CoarseCellSize:     200,
		StraightSpacing:    25,
		DiagonalSpacing:    50,
		AttachmentRadii:    []float64{30, 60},
		Tiers:              DefaultTiers(),
	}
}

// SchematicPath connects two stations with at most one corner, using
// only horizontal, vertical, and 45-degree segments in the projected
// plane. Returns 2 points for an aligned pair, 3 for a dogleg.
//
// The path is order-sensitive: the dogleg always travels the diagonal
// first and snaps the corner onto the target's final axis, so the
// reverse path is not necessarily the reversed point list.
func SchematicPath(start, target geo.LngLat, tolerance float64) []geo.LngLat {
	a := geo.Project(start)
	b := geo.Project(target)
	dx := b.X - a.X
	dy := b.Y - a.Y

	// Aligned within tolerance: a single straight segment.
	if math.Abs(dx) < tolerance || math.Abs(dy) < tolerance ||
		math.Abs(math.Abs(dx)-math.Abs(dy)) < tolerance {
		return []geo.LngLat{start, target}
	}

	// Dogleg: diagonal by min(|dx|,|dy|), then straight along the
	// remaining axis. The corner's coordinate on the final axis is
	// taken from the target exactly, so the last segment cannot end
	// up almost-but-not-quite straight from rounding.
	diag := math.Min(math.Abs(dx), math.Abs(dy))
	corner := geo.Point{
		X: a.X + math.Copysign(diag, dx),
		Y: a.Y + math.Copysign(diag, dy),
	}
	if math.Abs(dx) > math.Abs(dy) {
		corner.Y = b.Y // final leg is horizontal
	} else {
		corner.X = b.X // final leg is vertical
	}
	return []geo.LngLat{start, geo.Unproject(corner), target}
}

// segmentKind classifies a plane delta against the metro angle set.
type segmentKind int

const (
	segSkewed segmentKind = iota
	segHorizontal
	segVertical
	segDiagonal
)

// classifySegment reports which clean metro angle a segment follows,
// or segSkewed if it follows none within tolerance.
func classifySegment(a, b geo.Point, tolerance float64) segmentKind {
	dx := b.X - a.X
	dy := b.Y - a.Y
	switch {
	case math.Abs(dy) < tolerance:
		return segHorizontal
	case math.Abs(dx) < tolerance:
		return segVertical
	case math.Abs(math.Abs(dx)-math.Abs(dy)) < tolerance:
		return segDiagonal
	default:
		return segSkewed
	}
}

// RoutePolyline builds the full schematic polyline for an ordered list
// of station positions by chaining per-leg schematic paths. Shared leg
// endpoints are emitted once. Fewer than 2 stations yields nil.
func RoutePolyline(stations []geo.LngLat, tolerance float64) []geo.LngLat {
	if len(stations) < 2 {
		return nil
	}
	out := []geo.LngLat{stations[0]}
	for i := 1; i < len(stations); i++ {
		leg := SchematicPath(stations[i-1], stations[i], tolerance)
		out = append(out, leg[1:]...)
	}
	return out
}
