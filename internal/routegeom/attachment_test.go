package routegeom

import (
	"math"
	"testing"

	"github.com/cioddi/metromesh-sub000/internal/geo"
)

func TestAssignBandsDistinctAndOrdered(t *testing.T) {
	routes := []RoutePath{
		parallelRoute("south", 0, 3000),
		parallelRoute("mid", 50, 3000),
		parallelRoute("north", 100, 3000),
	}
	p := DefaultParams()
	corridors := DetectCorridors(routes, p)
	if len(corridors) == 0 {
		t.Fatal("expected a corridor")
	}
	bands := AssignBands(corridors, routes)

	var three *BandAssignment
	for i := range bands {
		if bands[i].Size == 3 {
			three = &bands[i]
		}
	}
	if three == nil {
		t.Fatal("no corridor bundles all three routes")
	}

	// Bands must be distinct ordinals 0..N-1.
	seen := make(map[int]bool)
	for routeID, b := range three.Bands {
		if b < 0 || b >= three.Size {
			t.Errorf("route %s band %d out of range", routeID, b)
		}
		if seen[b] {
			t.Errorf("band %d assigned twice", b)
		}
		seen[b] = true
	}

	// Lateral placement follows the geometric left-to-right order. The
	// corridor's averaged direction may come out east or west, so the
	// ordering is either south<mid<north or the exact reverse.
	s, m, n := three.Bands["south"], three.Bands["mid"], three.Bands["north"]
	ascending := s < m && m < n
	descending := s > m && m > n
	if !ascending && !descending {
		t.Errorf("bands not monotone in perpendicular offset: south=%d mid=%d north=%d", s, m, n)
	}
}

func TestBandOffsetSymmetricAboutZero(t *testing.T) {
	for _, size := range []int{2, 3, 4, 5} {
		sum := 0.0
		offsets := make(map[float64]bool)
		for b := 0; b < size; b++ {
			o := BandOffset(b, size, 25)
			if offsets[o] {
				t.Errorf("size %d: duplicate offset %f", size, o)
			}
			offsets[o] = true
			sum += o
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("size %d: offsets sum to %f, want 0", size, sum)
		}
		// Even spacing.
		if o0, o1 := BandOffset(0, size, 25), BandOffset(1, size, 25); o1-o0 != 25 {
			t.Errorf("size %d: spacing %f, want 25", size, o1-o0)
		}
	}
}

func TestAssignAttachmentsOnePerRouteStation(t *testing.T) {
	hub := testOrigin
	east := planePoint(1000, 0)
	north := planePoint(0, 1000)
	stations := []AttachmentStation{
		{ID: "hub", Position: hub},
		{ID: "east", Position: east},
		{ID: "north", Position: north},
	}
	routes := []RoutePath{
		{RouteID: "r1", StationIDs: []string{"hub", "east"}, Stations: []geo.LngLat{hub, east}},
		{RouteID: "r2", StationIDs: []string{"hub", "north"}, Stations: []geo.LngLat{hub, north}},
	}

	set := AssignAttachments(stations, routes, []float64{30, 60})

	// Each route gets exactly one slot at each of its stations, and no
	// slot is shared.
	used := make(map[string]map[int]bool)
	for _, r := range routes {
		for _, sid := range r.StationIDs {
			idx, ok := set.Assigned[sid][r.RouteID]
			if !ok {
				t.Fatalf("route %s has no slot at station %s", r.RouteID, sid)
			}
			pt := set.Points[sid][idx]
			if !pt.Occupied || pt.RouteID != r.RouteID {
				t.Errorf("slot %d at %s not claimed by %s", idx, sid, r.RouteID)
			}
			if used[sid] == nil {
				used[sid] = make(map[int]bool)
			}
			if used[sid][idx] {
				t.Errorf("slot %d at %s assigned to two routes", idx, sid)
			}
			used[sid][idx] = true
		}
	}
}

func TestAssignAttachmentsPrefersAlignedSlot(t *testing.T) {
	hub := testOrigin
	east := planePoint(1000, 0)
	stations := []AttachmentStation{
		{ID: "hub", Position: hub},
		{ID: "east", Position: east},
	}
	routes := []RoutePath{
		{RouteID: "r1", StationIDs: []string{"hub", "east"}, Stations: []geo.LngLat{hub, east}},
	}
	set := AssignAttachments(stations, routes, []float64{30})

	idx := set.Assigned["hub"]["r1"]
	pt := set.Points["hub"][idx]
	// An eastbound route at an otherwise empty station should claim a
	// slot on the east-west axis.
	if math.Abs(pt.Direction.Y) > 0.01 {
		t.Errorf("claimed slot at %.1f°, want the east-west axis", pt.AngleDeg)
	}
}

func TestAssignAttachmentsGreedyOrderDependent(t *testing.T) {
	hub := testOrigin
	east := planePoint(1000, 0)
	stations := []AttachmentStation{
		{ID: "hub", Position: hub},
		{ID: "east", Position: east},
	}
	// Two identical routes competing for the same best slot: the first
	// processed route wins it.
	routes := []RoutePath{
		{RouteID: "first", StationIDs: []string{"hub", "east"}, Stations: []geo.LngLat{hub, east}},
		{RouteID: "second", StationIDs: []string{"hub", "east"}, Stations: []geo.LngLat{hub, east}},
	}
	set := AssignAttachments(stations, routes, []float64{30})

	p1 := set.Points["hub"][set.Assigned["hub"]["first"]]
	p2 := set.Points["hub"][set.Assigned["hub"]["second"]]
	if p1.AngleDeg == p2.AngleDeg {
		t.Fatal("both routes claimed the same slot")
	}
	d1 := math.Abs(p1.Direction.Dot(geo.Point{X: 1}))
	d2 := math.Abs(p2.Direction.Dot(geo.Point{X: 1}))
	if d1 < d2 {
		t.Errorf("first route got a worse-aligned slot (%f) than the second (%f)", d1, d2)
	}
}
