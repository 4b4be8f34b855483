package routegeom

import (
	"math"

	"github.com/cioddi/metromesh-sub000/internal/geo"
)

// segmentGrid is a uniform spatial hash over micro-segment centers.
// Two grids at different cell sizes back the multi-scale proximity
// queries of the corridor detector; without them every detection tier
// would be an O(n²) sweep over all segment pairs.
type segmentGrid struct {
	cellSize float64
	cells    map[[2]int][]int // cell -> indices into the segment arena
}

func newSegmentGrid(cellSize float64) *segmentGrid {
	return &segmentGrid{cellSize: cellSize, cells: make(map[[2]int][]int)}
}

func (g *segmentGrid) cellOf(p geo.Point) [2]int {
	return [2]int{
		int(math.Floor(p.X / g.cellSize)),
		int(math.Floor(p.Y / g.cellSize)),
	}
}

func (g *segmentGrid) insert(idx int, center geo.Point) {
	key := g.cellOf(center)
	g.cells[key] = append(g.cells[key], idx)
}

// neighbors appends to buf the indices of all segments whose cell lies
// within radius of center, in deterministic cell-scan order. Callers
// still have to distance-filter: cell membership overshoots by up to a
// cell diagonal.
func (g *segmentGrid) neighbors(center geo.Point, radius float64, buf []int) []int {
	reach := int(math.Ceil(radius / g.cellSize))
	base := g.cellOf(center)
	for dx := -reach; dx <= reach; dx++ {
		for dy := -reach; dy <= reach; dy++ {
			key := [2]int{base[0] + dx, base[1] + dy}
			buf = append(buf, g.cells[key]...)
		}
	}
	return buf
}
