package routegeom

// unionFind is a weighted union-find over an arena of segment indices.
// Unions carry a strength; when two groups merge, the root with the
// larger accumulated strength wins, so strongly connected corridor
// chains keep a stable representative as weaker links attach.
type unionFind struct {
	parent   []int
	strength []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent:   make([]int, n),
		strength: make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]] // path halving
		i = uf.parent[i]
	}
	return i
}

// union merges the groups of a and b, adding w to the merged group's
// accumulated strength.
func (uf *unionFind) union(a, b, w int) {
	ra := uf.find(a)
	rb := uf.find(b)
	if ra == rb {
		uf.strength[ra] += w
		return
	}
	if uf.strength[ra] < uf.strength[rb] ||
		(uf.strength[ra] == uf.strength[rb] && ra > rb) {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.strength[ra] += uf.strength[rb] + w
}
