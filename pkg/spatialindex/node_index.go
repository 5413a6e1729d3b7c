package spatialindex

import (
	"sort"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geometry"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type NodeItem struct {
	ID       int64
	Coord    datastructure.Coordinate
	Mercator orb.Point

	rect rtreego.Rect
	seq  int
}

func (n *NodeItem) Bounds() rtreego.Rect {
	return n.rect
}

func (n *NodeItem) bound() orb.Bound {
	return n.Mercator.Bound()
}

func (n *NodeItem) distance(p orb.Point) float64 {
	return planar.Distance(n.Mercator, p)
}

func (n *NodeItem) order() int {
	return n.seq
}

// NodeIndex rtree over node positions in web mercator meters.
type NodeIndex struct {
	tree  *rtreego.Rtree
	items []*NodeItem
}

func NewNodeIndex(g *datastructure.Graph) *NodeIndex {
	idx := &NodeIndex{
		tree: newTree(),
	}
	for _, id := range g.NodeIDs() {
		n, _ := g.GetNode(id)
		coord := n.Coordinate()
		item := &NodeItem{
			ID:       id,
			Coord:    coord,
			Mercator: geometry.PointToMercator(coord.Point()),
			seq:      len(idx.items),
		}
		item.rect = boundToRect(item.Mercator.Bound())
		idx.items = append(idx.items, item)
		idx.tree.Insert(item)
	}
	return idx
}

func (idx *NodeIndex) Size() int {
	return len(idx.items)
}

// Nearest node to the WGS84 point p, ties go to the lowest node id.
func (idx *NodeIndex) Nearest(p orb.Point) (*NodeItem, bool) {
	c := nearest(idx.tree, geometry.PointToMercator(p))
	if c == nil {
		return nil, false
	}
	return c.(*NodeItem), true
}

// SearchWithinRadius nodes within radius meters of the mercator point p, sorted by id.
func (idx *NodeIndex) SearchWithinRadius(p orb.Point, radius float64) []*NodeItem {
	b := orb.Bound{
		Min: orb.Point{p.X() - radius, p.Y() - radius},
		Max: orb.Point{p.X() + radius, p.Y() + radius},
	}
	hits := idx.tree.SearchIntersect(boundToRect(b))

	res := make([]*NodeItem, 0, len(hits))
	for _, h := range hits {
		n := h.(*NodeItem)
		if planar.Distance(n.Mercator, p) <= radius {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].seq < res[j].seq })
	return res
}

// NodePair two distinct nodes, U < V.
type NodePair struct {
	U int64
	V int64
}

// PairsWithinRadius every unordered pair of nodes at most radius planar meters apart, sorted by (U, V).
func (idx *NodeIndex) PairsWithinRadius(radius float64) []NodePair {
	pairs := []NodePair{}
	for _, n := range idx.items {
		for _, other := range idx.SearchWithinRadius(n.Mercator, radius) {
			if other.ID <= n.ID {
				continue
			}
			pairs = append(pairs, NodePair{U: n.ID, V: other.ID})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].U != pairs[j].U {
			return pairs[i].U < pairs[j].U
		}
		return pairs[i].V < pairs[j].V
	})
	return pairs
}

// NearestK up to k nodes closest to the WGS84 point p, nearest first.
func (idx *NodeIndex) NearestK(p orb.Point, k int) []*NodeItem {
	if k <= 0 || idx.tree.Size() == 0 {
		return []*NodeItem{}
	}
	mp := geometry.PointToMercator(p)
	res := make([]*NodeItem, 0, k)
	for _, n := range idx.tree.NearestNeighbors(k, rtreego.Point{mp.X(), mp.Y()}) {
		if n == nil {
			continue
		}
		res = append(res, n.(*NodeItem))
	}
	sort.SliceStable(res, func(i, j int) bool {
		di, dj := res[i].distance(mp), res[j].distance(mp)
		if di != dj {
			return di < dj
		}
		return res[i].ID < res[j].ID
	})
	return res
}
