package routegeom

import (
	"math"
	"sort"

	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// Corridor is a bundle of near-parallel micro-segments from at least
// two distinct routes. The averaged direction is what band offsets are
// computed against, so it must be stable under small station moves.
type Corridor struct {
	ID        int
	RouteIDs  []string  // sorted
	Direction geo.Point // length-weighted average, unit
	Centroid  geo.Point
	Segments  []MicroSegment // ordered by projection onto Direction
	Diagonal  bool
}

// minSameDirection rejects anti-parallel pairings. Two segments whose
// directions point substantially opposite ways belong to different
// travel corridors even when they overlap spatially.
const minSameDirection = 0.3

// DetectionTier is one proximity/angle scale of the parallel search.
// A pair within Radius whose directions agree within MaxAngleDeg adds
// Strength to the pair's group.
type DetectionTier struct {
	Radius      float64 // plane units
	MaxAngleDeg float64
	Strength    int
}

// DefaultTiers returns the production detection ladder: two strict
// close-range scans, then one loose long-range scan.
func DefaultTiers() []DetectionTier {
	return []DetectionTier{
		{Radius: 75, MaxAngleDeg: 15, Strength: 3},
		{Radius: 150, MaxAngleDeg: 15, Strength: 2},
		{Radius: 300, MaxAngleDeg: 30, Strength: 1},
	}
}

// DetectCorridors finds groups of parallel route segments. It samples
// every route into micro-segments, runs the three-tier proximity scan
// over two spatial grids, unions qualifying pairs, and keeps groups
// spanning at least two routes.
//
// The result is deterministic for identical input: segments live in an
// index arena, pairs are visited in arena order, and groups are emitted
// ordered by their smallest member index.
func DetectCorridors(routes []RoutePath, p Params) []Corridor {
	// Arena of all micro-segments, with a parallel route-ordinal slice
	// so the inner loop compares ints instead of strings.
	var segs []MicroSegment
	var segRoute []int
	for ri, r := range routes {
		for _, s := range SampleRoute(r, p.SampleDistance) {
			segs = append(segs, s)
			segRoute = append(segRoute, ri)
		}
	}
	if len(segs) == 0 {
		return nil
	}

	fine := newSegmentGrid(p.FineCellSize)
	coarse := newSegmentGrid(p.CoarseCellSize)
	for i, s := range segs {
		fine.insert(i, s.Center)
		coarse.insert(i, s.Center)
	}

	tiers := p.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}

	uf := newUnionFind(len(segs))
	var buf []int
	for _, tier := range tiers {
		// Short-range tiers scan the fine grid; once the radius reaches
		// the coarse cell size the coarse grid visits fewer cells.
		grid := fine
		if tier.Radius >= p.CoarseCellSize {
			grid = coarse
		}
		minAligned := math.Cos(tier.MaxAngleDeg * math.Pi / 180)
		for i := range segs {
			buf = grid.neighbors(segs[i].Center, tier.Radius, buf[:0])
			for _, j := range buf {
				if j <= i || segRoute[j] == segRoute[i] {
					continue
				}
				if segs[j].Center.Sub(segs[i].Center).Length() > tier.Radius {
					continue
				}
				dot := segs[i].Dir.Dot(segs[j].Dir)
				if dot <= minSameDirection || dot < minAligned {
					continue
				}
				uf.union(i, j, tier.Strength)
			}
		}
	}

	// Collect groups in arena order so corridor ids are stable.
	members := make(map[int][]int)
	var roots []int
	for i := range segs {
		r := uf.find(i)
		if _, seen := members[r]; !seen {
			roots = append(roots, r)
		}
		members[r] = append(members[r], i)
	}
	sort.Slice(roots, func(a, b int) bool {
		return members[roots[a]][0] < members[roots[b]][0]
	})

	var corridors []Corridor
	for _, root := range roots {
		idxs := members[root]
		if len(idxs) < 2 {
			continue
		}
		routeSet := make(map[int]bool)
		for _, i := range idxs {
			routeSet[segRoute[i]] = true
		}
		if len(routeSet) < 2 {
			continue
		}

		c := buildCorridor(len(corridors), idxs, segs, segRoute, routes)
		corridors = append(corridors, c)
	}
	return corridors
}

// buildCorridor computes the averaged direction, centroid, and ordered
// member list for one union-find group.
func buildCorridor(id int, idxs []int, segs []MicroSegment, segRoute []int, routes []RoutePath) Corridor {
	// Length-weighted direction sum. Each member is sign-aligned to the
	// running sum first: multi-hop unions can contain segments sampled
	// in opposite traversal order even though the pairs that joined
	// them all pointed the same way.
	var sum geo.Point
	var centroid geo.Point
	var totalLen float64
	for _, i := range idxs {
		d := segs[i].Dir.Scale(segs[i].Length)
		if sum.Dot(d) < 0 {
			d = d.Scale(-1)
		}
		sum = sum.Add(d)
		centroid = centroid.Add(segs[i].Center.Scale(segs[i].Length))
		totalLen += segs[i].Length
	}
	dir := sum.Normalized()
	if totalLen > 0 {
		centroid = centroid.Scale(1 / totalLen)
	}

	ordered := make([]MicroSegment, len(idxs))
	for k, i := range idxs {
		ordered[k] = segs[i]
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Center.Dot(dir) < ordered[b].Center.Dot(dir)
	})

	routeIDs := make([]string, 0, 2)
	seen := make(map[int]bool)
	for _, i := range idxs {
		if !seen[segRoute[i]] {
			seen[segRoute[i]] = true
			routeIDs = append(routeIDs, routes[segRoute[i]].RouteID)
		}
	}
	sort.Strings(routeIDs)

	return Corridor{
		ID:        id,
		RouteIDs:  routeIDs,
		Direction: dir,
		Centroid:  centroid,
		Segments:  ordered,
		Diagonal:  isDiagonalDirection(dir),
	}
}

// isDiagonalDirection reports whether a corridor runs closer to 45°
// than to an axis. Diagonal corridors get wider band spacing to keep
// on-screen separation comparable.
func isDiagonalDirection(d geo.Point) bool {
	ax := math.Abs(d.X)
	ay := math.Abs(d.Y)
	hi := math.Max(ax, ay)
	lo := math.Min(ax, ay)
	if hi == 0 {
		return false
	}
	// tan(22.5°): halfway between axis and diagonal.
	return lo/hi > 0.41421356
}

// ContainsRoute reports whether the corridor has segments of routeID.
func (c *Corridor) ContainsRoute(routeID string) bool {
	for _, id := range c.RouteIDs {
		if id == routeID {
			return true
		}
	}
	return false
}
