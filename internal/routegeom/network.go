package routegeom

import (
	"math"
	"time"

	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// RenderPoint is one vertex of a render-ready route line. Altitude is
// carried for the 3-D scene layer; the engine always emits 0.
type RenderPoint struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
	Alt float64 `json:"alt"`
}

// VisualRoute is the final offset polyline for one route.
type VisualRoute struct {
	RouteID string        `json:"routeId"`
	Points  []RenderPoint `json:"points"`
}

// VisualNetwork is the render-side snapshot: offset polylines plus the
// corridor, band, and attachment data they were derived from. It is
// rebuilt wholesale whenever stations or routes change and never
// mutated in place; consumers swap the whole pointer.
type VisualNetwork struct {
	Routes      []VisualRoute    `json:"routes"`
	Corridors   []Corridor       `json:"corridors"`
	Bands       []BandAssignment `json:"bands"`
	Attachments AttachmentSet    `json:"attachments"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// MovementRoute is the physics-side geometry for one route: raw
// station positions, per-leg schematic paths, and real ground leg
// distances. Train movement only ever reads this, never the offset
// visual geometry, so physical speed is independent of how the line
// is drawn.
type MovementRoute struct {
	RouteID          string
	StationIDs       []string
	StationPositions []geo.LngLat
	Legs             [][]geo.LngLat // schematic path per station pair
	LegMeters        []float64      // ground distance per station pair
}

// MovementNetwork is the physics-side snapshot, replaced atomically on
// every rebuild alongside VisualNetwork.
type MovementNetwork struct {
	Routes      map[string]*MovementRoute
	LastUpdated time.Time
}

// BuildMovementNetwork derives the physics geometry for all routes.
// Routes with fewer than two stations are skipped, matching the
// simulator's no-op handling for them.
func BuildMovementNetwork(routes []RoutePath, p Params) *MovementNetwork {
	net := &MovementNetwork{
		Routes:      make(map[string]*MovementRoute, len(routes)),
		LastUpdated: time.Now(),
	}
	for _, r := range routes {
		if len(r.Stations) < 2 {
			continue
		}
		mr := &MovementRoute{
			RouteID:          r.RouteID,
			StationIDs:       r.StationIDs,
			StationPositions: r.Stations,
			Legs:             make([][]geo.LngLat, len(r.Stations)-1),
			LegMeters:        make([]float64, len(r.Stations)-1),
		}
		for i := 0; i < len(r.Stations)-1; i++ {
			mr.Legs[i] = SchematicPath(r.Stations[i], r.Stations[i+1], p.AlignmentTolerance)
			mr.LegMeters[i] = geo.DistanceMeters(r.Stations[i], r.Stations[i+1])
		}
		net.Routes[r.RouteID] = mr
	}
	return net
}

// PositionAt interpolates a world coordinate for a scalar train
// position in station-index units, following the leg's schematic path
// so a rendered train tracks the drawn line through doglegs.
func (mr *MovementRoute) PositionAt(pos float64) geo.LngLat {
	n := len(mr.StationPositions)
	if n == 0 {
		return geo.LngLat{}
	}
	if pos <= 0 {
		return mr.StationPositions[0]
	}
	if pos >= float64(n-1) {
		return mr.StationPositions[n-1]
	}
	leg := int(pos)
	frac := pos - float64(leg)
	return interpolatePolyline(mr.Legs[leg], frac)
}

// interpolatePolyline walks a polyline to the point at fraction t of
// its total plane length.
func interpolatePolyline(line []geo.LngLat, t float64) geo.LngLat {
	if len(line) == 0 {
		return geo.LngLat{}
	}
	if len(line) == 1 || t <= 0 {
		return line[0]
	}
	pts := make([]geo.Point, len(line))
	total := 0.0
	for i, c := range line {
		pts[i] = geo.Project(c)
		if i > 0 {
			total += pts[i].Sub(pts[i-1]).Length()
		}
	}
	if total == 0 {
		return line[0]
	}
	target := t * total
	for i := 1; i < len(pts); i++ {
		seg := pts[i].Sub(pts[i-1])
		l := seg.Length()
		if target <= l || i == len(pts)-1 {
			f := 1.0
			if l > 0 {
				f = math.Min(target/l, 1)
			}
			return geo.Unproject(pts[i-1].Add(seg.Scale(f)))
		}
		target -= l
	}
	return line[len(line)-1]
}

// corridorAttachRadius limits how far from a corridor a path point can
// be and still inherit that corridor's offset, in plane units.
const corridorAttachRadius = 150.0

// BuildVisualNetwork runs the full visual pipeline: schematic
// polylines, corridor detection, band assignment, attachment slots,
// lateral offsetting, and post-offset angle repair.
func BuildVisualNetwork(stations []AttachmentStation, routes []RoutePath, p Params) *VisualNetwork {
	// Degenerate routes are dropped here rather than erroring; the
	// rest of the network still rebuilds.
	valid := make([]RoutePath, 0, len(routes))
	for _, r := range routes {
		if len(r.Stations) < 2 {
			continue
		}
		r.Polyline = RoutePolyline(r.Stations, p.AlignmentTolerance)
		valid = append(valid, r)
	}

	corridors := DetectCorridors(valid, p)
	bands := AssignBands(corridors, valid)
	attachments := AssignAttachments(stations, valid, p.AttachmentRadii)

	bandByCorridor := make(map[int]BandAssignment, len(bands))
	for _, b := range bands {
		bandByCorridor[b.CorridorID] = b
	}

	net := &VisualNetwork{
		Corridors:   corridors,
		Bands:       bands,
		Attachments: attachments,
		LastUpdated: time.Now(),
	}
	for _, r := range valid {
		offset := offsetPolyline(r, corridors, bandByCorridor, p)
		points := make([]RenderPoint, len(offset))
		for i, pt := range offset {
			c := geo.Unproject(pt)
			points[i] = RenderPoint{Lng: c.Lng, Lat: c.Lat}
		}
		net.Routes = append(net.Routes, VisualRoute{RouteID: r.RouteID, Points: points})
	}
	return net
}

// offsetPolyline displaces a route's schematic polyline laterally at
// every point that lies inside a corridor the route belongs to, then
// repairs any segment the independent per-point offsets knocked off
// the clean metro angles.
func offsetPolyline(r RoutePath, corridors []Corridor, bands map[int]BandAssignment, p Params) []geo.Point {
	pts := make([]geo.Point, len(r.Polyline))
	for i, c := range r.Polyline {
		pts[i] = geo.Project(c)
	}

	out := make([]geo.Point, len(pts))
	for i, pt := range pts {
		out[i] = pt
		c := nearestCorridor(pt, r.RouteID, corridors)
		if c == nil {
			continue
		}
		band, ok := bands[c.ID]
		if !ok {
			continue
		}
		idx, ok := band.Bands[r.RouteID]
		if !ok {
			continue
		}
		spacing := p.StraightSpacing
		if c.Diagonal {
			spacing = p.DiagonalSpacing
		}
		lateral := BandOffset(idx, band.Size, spacing)
		out[i] = pt.Add(c.Direction.Perp().Scale(lateral))
	}

	snapPolyline(out, p.AlignmentTolerance)
	return out
}

// nearestCorridor returns the corridor containing routeID whose member
// segments pass closest to pt, or nil if none is within reach.
func nearestCorridor(pt geo.Point, routeID string, corridors []Corridor) *Corridor {
	var best *Corridor
	bestDist := corridorAttachRadius
	for i := range corridors {
		c := &corridors[i]
		if !c.ContainsRoute(routeID) {
			continue
		}
		for _, s := range c.Segments {
			if d := s.Center.Sub(pt).Length(); d < bestDist {
				bestDist = d
				best = c
			}
		}
	}
	return best
}

// snapPolyline restores horizontal/vertical/45° segments in place.
// When neighboring points were offset against different corridors the
// connecting segment can come out slightly skewed; the later point is
// moved by the smallest correction that lands the segment back on a
// clean angle.
func snapPolyline(pts []geo.Point, tolerance float64) {
	for i := 1; i < len(pts); i++ {
		if classifySegment(pts[i-1], pts[i], tolerance) != segSkewed {
			continue
		}
		dx := pts[i].X - pts[i-1].X
		dy := pts[i].Y - pts[i-1].Y

		costH := math.Abs(dy)
		costV := math.Abs(dx)
		costD := math.Abs(math.Abs(dx) - math.Abs(dy))
		switch {
		case costD <= costH && costD <= costV:
			m := math.Min(math.Abs(dx), math.Abs(dy))
			// Shorten the longer axis to match the shorter one.
			if math.Abs(dx) > math.Abs(dy) {
				pts[i].X = pts[i-1].X + math.Copysign(m, dx)
			} else {
				pts[i].Y = pts[i-1].Y + math.Copysign(m, dy)
			}
		case costH <= costV:
			pts[i].Y = pts[i-1].Y
		default:
			pts[i].X = pts[i-1].X
		}
	}
}
