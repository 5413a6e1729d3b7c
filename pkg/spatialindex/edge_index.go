package spatialindex

import (
	"math"
	"sort"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geometry"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// EdgeItem handle for one indexed edge geometry.
type EdgeItem struct {
	Key      datastructure.EdgeKey
	Geometry orb.Geometry // WGS84, as stored on the graph

	mercator orb.Geometry
	mbound   orb.Bound
	rect     rtreego.Rect
	seq      int
}

func (e *EdgeItem) Bounds() rtreego.Rect {
	return e.rect
}

func (e *EdgeItem) bound() orb.Bound {
	return e.mbound
}

func (e *EdgeItem) distance(p orb.Point) float64 {
	d := planar.DistanceFrom(e.mercator, p)
	if math.IsInf(d, 0) {
		return math.MaxFloat64
	}
	return d
}

func (e *EdgeItem) order() int {
	return e.seq
}

// EdgeIndex read only rtree over edge geometries projected to web mercator.
type EdgeIndex struct {
	tree  *rtreego.Rtree
	items []*EdgeItem
}

// NewEdgeIndex indexes every edge that has a non empty geometry. Edges without a stored
// geometry are indexed as the straight segment between their endpoints.
func NewEdgeIndex(g *datastructure.Graph) *EdgeIndex {
	idx := &EdgeIndex{
		tree: newTree(),
	}
	for _, e := range g.Edges() {
		geom := g.EdgeGeometry(e)
		if geometry.IsEmpty(geom) || !finite(geom.Bound()) {
			continue
		}
		merc := geometry.ToMercator(geom)
		item := &EdgeItem{
			Key:      e.EdgeKey(),
			Geometry: geom,
			mercator: merc,
			mbound:   merc.Bound(),
			seq:      len(idx.items),
		}
		item.rect = boundToRect(item.mbound)
		idx.items = append(idx.items, item)
		idx.tree.Insert(item)
	}
	return idx
}

func finite(b orb.Bound) bool {
	for _, v := range []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (idx *EdgeIndex) Size() int {
	return len(idx.items)
}

// Nearest edge whose geometry is closest to the WGS84 point p.
func (idx *EdgeIndex) Nearest(p orb.Point) (*EdgeItem, bool) {
	c := nearest(idx.tree, geometry.PointToMercator(p))
	if c == nil {
		return nil, false
	}
	return c.(*EdgeItem), true
}

// SearchIntersect edges whose mercator bound intersects b, in index order.
func (idx *EdgeIndex) SearchIntersect(b orb.Bound) []*EdgeItem {
	hits := idx.tree.SearchIntersect(boundToRect(b))
	res := make([]*EdgeItem, 0, len(hits))
	for _, h := range hits {
		res = append(res, h.(*EdgeItem))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].seq < res[j].seq })
	return res
}
