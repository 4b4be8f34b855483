package routegeom

import (
	"math"
	"sort"

	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// BandAssignment gives every route passing through a corridor a
// discrete lateral band. Band 0 is the leftmost line (most negative
// perpendicular offset); Size is the number of bands, which equals the
// number of participating routes.
type BandAssignment struct {
	CorridorID int
	Bands      map[string]int
	Size       int
}

// AssignBands orders each corridor's routes by their mean signed
// perpendicular distance from the corridor's representative line and
// turns that order into band indices. Routes that naturally run to the
// left of the corridor line therefore get the left bands, which keeps
// lines from crossing each other when the offsets are applied.
func AssignBands(corridors []Corridor, routes []RoutePath) []BandAssignment {
	byID := make(map[string]RoutePath, len(routes))
	for _, r := range routes {
		byID[r.RouteID] = r
	}

	out := make([]BandAssignment, 0, len(corridors))
	for _, c := range corridors {
		perp := c.Direction.Perp()

		type routeOffset struct {
			routeID string
			signed  float64
		}
		offsets := make([]routeOffset, 0, len(c.RouteIDs))
		for _, id := range c.RouteIDs {
			r, ok := byID[id]
			if !ok || len(r.Stations) == 0 {
				offsets = append(offsets, routeOffset{routeID: id})
				continue
			}
			sum := 0.0
			for _, st := range r.Stations {
				sum += geo.Project(st).Sub(c.Centroid).Dot(perp)
			}
			offsets = append(offsets, routeOffset{
				routeID: id,
				signed:  sum / float64(len(r.Stations)),
			})
		}
		sort.SliceStable(offsets, func(i, j int) bool {
			if offsets[i].signed != offsets[j].signed {
				return offsets[i].signed < offsets[j].signed
			}
			return offsets[i].routeID < offsets[j].routeID
		})

		bands := make(map[string]int, len(offsets))
		for i, o := range offsets {
			bands[o.routeID] = i
		}
		out = append(out, BandAssignment{
			CorridorID: c.ID,
			Bands:      bands,
			Size:       len(offsets),
		})
	}
	return out
}

// BandOffset converts a band index to a signed lateral offset in plane
// units, symmetric about the corridor line: N bands span evenly from
// -(N-1)/2 to +(N-1)/2 spacings.
func BandOffset(band, size int, spacing float64) float64 {
	return (float64(band) - float64(size-1)/2) * spacing
}

// AttachmentPoint is one candidate connection slot on the ring around
// a station. Slots sit at fixed 22.5° increments on one or more
// concentric layers and are claimed greedily, one per route per
// station, so that several routes meeting at a busy station leave at
// distinct clean angles.
type AttachmentPoint struct {
	StationID string
	Position  geo.LngLat
	Direction geo.Point // outward unit vector
	AngleDeg  float64
	Occupied  bool
	RouteID   string
}

// AttachmentStation is the minimal station view attachment assignment
// needs.
type AttachmentStation struct {
	ID       string
	Position geo.LngLat
}

// AttachmentSet is the result of one greedy assignment pass.
type AttachmentSet struct {
	// Points holds every candidate slot per station, occupied or not.
	Points map[string][]*AttachmentPoint
	// Assigned maps stationID -> routeID -> index into Points.
	Assigned map[string]map[string]int
}

const attachmentSlotsPerLayer = 16 // 22.5° increments

// buildRing generates the candidate slots around one station.
func buildRing(st AttachmentStation, radii []float64) []*AttachmentPoint {
	ring := make([]*AttachmentPoint, 0, len(radii)*attachmentSlotsPerLayer)
	for _, radius := range radii {
		for k := 0; k < attachmentSlotsPerLayer; k++ {
			angle := float64(k) * 360 / attachmentSlotsPerLayer
			rad := angle * math.Pi / 180
			dir := geo.Point{X: math.Cos(rad), Y: math.Sin(rad)}
			ring = append(ring, &AttachmentPoint{
				StationID: st.ID,
				Position:  geo.PlaneOffsetBy(st.Position, dir, radius),
				Direction: dir,
				AngleDeg:  angle,
			})
		}
	}
	return ring
}

// AssignAttachments runs the greedy slot assignment. Routes are
// processed in input order and stations in route order, so earlier
// routes get first choice; the assignment is order-dependent but
// deterministic.
func AssignAttachments(stations []AttachmentStation, routes []RoutePath, radii []float64) AttachmentSet {
	set := AttachmentSet{
		Points:   make(map[string][]*AttachmentPoint, len(stations)),
		Assigned: make(map[string]map[string]int),
	}
	for _, st := range stations {
		set.Points[st.ID] = buildRing(st, radii)
	}

	for _, route := range routes {
		for si, stationID := range route.StationIDs {
			ring, ok := set.Points[stationID]
			if !ok {
				continue // route references a removed station
			}
			if _, taken := set.Assigned[stationID][route.RouteID]; taken {
				continue // circular route revisiting its first station
			}
			local := localRouteDirection(route, si)
			best := -1
			bestScore := math.Inf(-1)
			for i, pt := range ring {
				if pt.Occupied {
					continue
				}
				if s := scoreSlot(pt, local); s > bestScore {
					bestScore = s
					best = i
				}
			}
			if best < 0 {
				continue // ring exhausted, route connects without a slot
			}
			ring[best].Occupied = true
			ring[best].RouteID = route.RouteID
			if set.Assigned[stationID] == nil {
				set.Assigned[stationID] = make(map[string]int)
			}
			set.Assigned[stationID][route.RouteID] = best
		}
	}
	return set
}

// scoreSlot rates a free slot for a route's local direction: aligned
// slots score highest, and the eight 45° directions get a bonus over
// the intermediate 22.5° ones. The route passes through the station,
// so alignment is direction-agnostic.
func scoreSlot(pt *AttachmentPoint, local geo.Point) float64 {
	score := 2 * math.Abs(pt.Direction.Dot(local))
	if math.Mod(pt.AngleDeg, 45) == 0 {
		score += 0.5
	}
	return score
}

// localRouteDirection is the route's travel direction at station index
// si: toward the next station, or from the previous one at the line's
// far end.
func localRouteDirection(route RoutePath, si int) geo.Point {
	if si+1 < len(route.Stations) {
		return geo.Direction(route.Stations[si], route.Stations[si+1])
	}
	if si > 0 {
		return geo.Direction(route.Stations[si-1], route.Stations[si])
	}
	return geo.Point{}
}
