package routegeom

import (
	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// MicroSegment is a short sampled slice of a route's schematic path.
// The corridor detector works on these rather than whole legs so that
// two routes sharing only part of a leg still bundle correctly.
// Micro-segments are derived data: they are regenerated on every
// network rebuild and never persisted.
type MicroSegment struct {
	RouteID      string
	Start        geo.Point
	End          geo.Point
	Center       geo.Point
	Dir          geo.Point // unit direction
	Length       float64   // plane units
	RouteT       float64   // 0..1 progress along the whole polyline
	SegmentIndex int       // index of the polyline leg this came from
}

// RoutePath pairs a route id with its schematic polyline and the raw
// station positions the polyline was built from.
type RoutePath struct {
	RouteID    string
	StationIDs []string
	Stations   []geo.LngLat
	Polyline   []geo.LngLat
}

// SampleRoute cuts a route's polyline into micro-segments of roughly
// sampleDist plane units. Legs shorter than the sampling distance
// produce a single segment; zero-length legs are skipped.
func SampleRoute(route RoutePath, sampleDist float64) []MicroSegment {
	pts := make([]geo.Point, len(route.Polyline))
	total := 0.0
	for i, c := range route.Polyline {
		pts[i] = geo.Project(c)
		if i > 0 {
			total += pts[i].Sub(pts[i-1]).Length()
		}
	}
	if total == 0 {
		return nil
	}

	var segs []MicroSegment
	walked := 0.0
	for i := 1; i < len(pts); i++ {
		a := pts[i-1]
		b := pts[i]
		legVec := b.Sub(a)
		legLen := legVec.Length()
		if legLen == 0 {
			continue
		}
		dir := legVec.Scale(1 / legLen)

		n := int(legLen / sampleDist)
		if n < 1 {
			n = 1
		}
		step := legLen / float64(n)
		for k := 0; k < n; k++ {
			s := a.Add(dir.Scale(float64(k) * step))
			e := a.Add(dir.Scale(float64(k+1) * step))
			mid := float64(k)*step + step/2
			segs = append(segs, MicroSegment{
				RouteID:      route.RouteID,
				Start:        s,
				End:          e,
				Center:       s.Add(e).Scale(0.5),
				Dir:          dir,
				Length:       step,
				RouteT:       (walked + mid) / total,
				SegmentIndex: i - 1,
			})
		}
		walked += legLen
	}
	return segs
}
