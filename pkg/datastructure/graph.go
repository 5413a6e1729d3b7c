package datastructure

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"
)

type Node struct {
	ID  int64
	Lat float64
	Lon float64
}

func (n Node) Coordinate() Coordinate {
	return Coordinate{Lat: n.Lat, Lon: n.Lon}
}

// EdgeKey identifies one edge of a directed multigraph.
type EdgeKey struct {
	From int64
	To   int64
	Key  int
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%d->%d#%d", k.From, k.To, k.Key)
}

type Edge struct {
	From     int64
	To       int64
	Key      int
	Geometry orb.Geometry // nil means straight segment between the endpoints
	Length   float64      // meters
	Name     string
	Highway  string
}

func (e *Edge) EdgeKey() EdgeKey {
	return EdgeKey{From: e.From, To: e.To, Key: e.Key}
}

// Graph directed multigraph of a pedestrian road network. Not safe for concurrent mutation.
type Graph struct {
	nodes    map[int64]*Node
	outEdges map[int64][]*Edge
	numEdges int
}

func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[int64]*Node),
		outEdges: make(map[int64][]*Edge),
	}
}

// AddNode inserts a node or moves an existing one.
func (g *Graph) AddNode(id int64, lat, lon float64) {
	if n, ok := g.nodes[id]; ok {
		n.Lat = lat
		n.Lon = lon
		return
	}
	g.nodes[id] = &Node{ID: id, Lat: lat, Lon: lon}
}

func (g *Graph) GetNode(id int64) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (g *Graph) HasNode(id int64) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeIDs sorted ascending.
func (g *Graph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddEdge inserts e with the next free key for (From, To) and returns that key.
func (g *Graph) AddEdge(e Edge) (EdgeKey, error) {
	if !g.HasNode(e.From) {
		return EdgeKey{}, fmt.Errorf("add edge %d->%d: unknown node %d", e.From, e.To, e.From)
	}
	if !g.HasNode(e.To) {
		return EdgeKey{}, fmt.Errorf("add edge %d->%d: unknown node %d", e.From, e.To, e.To)
	}

	key := 0
	for _, out := range g.outEdges[e.From] {
		if out.To == e.To && out.Key >= key {
			key = out.Key + 1
		}
	}
	e.Key = key
	edge := e
	g.outEdges[e.From] = append(g.outEdges[e.From], &edge)
	g.numEdges++
	return edge.EdgeKey(), nil
}

// HasEdge true if at least one edge u->v exists.
func (g *Graph) HasEdge(u, v int64) bool {
	for _, e := range g.outEdges[u] {
		if e.To == v {
			return true
		}
	}
	return false
}

func (g *Graph) GetEdge(k EdgeKey) (*Edge, bool) {
	for _, e := range g.outEdges[k.From] {
		if e.To == k.To && e.Key == k.Key {
			return e, true
		}
	}
	return nil, false
}

// EdgesBetween all parallel edges u->v in insertion order.
func (g *Graph) EdgesBetween(u, v int64) []*Edge {
	res := []*Edge{}
	for _, e := range g.outEdges[u] {
		if e.To == v {
			res = append(res, e)
		}
	}
	return res
}

func (g *Graph) OutEdges(u int64) []*Edge {
	return g.outEdges[u]
}

// Edges every edge ordered by (From, To, Key).
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, g.numEdges)
	for _, out := range g.outEdges {
		edges = append(edges, out...)
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Key < b.Key
	})
	return edges
}

// EdgeGeometry the stored geometry, or the straight segment between the endpoints when none was stored.
func (g *Graph) EdgeGeometry(e *Edge) orb.Geometry {
	if e.Geometry != nil {
		return e.Geometry
	}
	from, okFrom := g.nodes[e.From]
	to, okTo := g.nodes[e.To]
	if !okFrom || !okTo {
		return nil
	}
	return orb.LineString{{from.Lon, from.Lat}, {to.Lon, to.Lat}}
}

func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

func (g *Graph) NumEdges() int {
	return g.numEdges
}

type GraphStats struct {
	NumNodes     int     `json:"num_nodes"`
	NumEdges     int     `json:"num_edges"`
	TotalLengthM float64 `json:"total_length_m"`
	MeanDegree   float64 `json:"mean_degree"`
}

func (g *Graph) Stats() GraphStats {
	stats := GraphStats{
		NumNodes: len(g.nodes),
		NumEdges: g.numEdges,
	}
	for _, out := range g.outEdges {
		for _, e := range out {
			stats.TotalLengthM += e.Length
		}
	}
	if stats.NumNodes > 0 {
		stats.MeanDegree = float64(stats.NumEdges) / float64(stats.NumNodes)
	}
	return stats
}

// RenderPath encodes the coordinates of a node path as a google polyline.
func (g *Graph) RenderPath(path []int64) string {
	coords := make([][]float64, 0, len(path))
	for _, id := range path {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		coords = append(coords, []float64{n.Lat, n.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}
