package routing

import (
	"math"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/util"
)

type RouteAlgorithm struct {
	g *datastructure.Graph
}

func NewRouteAlgorithm(g *datastructure.Graph) *RouteAlgorithm {
	return &RouteAlgorithm{g: g}
}

// ShortestPath runs A* over edge lengths with the haversine distance to the target as heuristic.
// Returns the node path and its length in meters.
func (rt *RouteAlgorithm) ShortestPath(from, to int64) ([]int64, float64, error) {
	target, ok := rt.g.GetNode(to)
	if !ok {
		return nil, 0, server.WrapErrorf(nil, server.ErrNotFound, "node %d not found", to)
	}
	if !rt.g.HasNode(from) {
		return nil, 0, server.WrapErrorf(nil, server.ErrNotFound, "node %d not found", from)
	}
	if from == to {
		return []int64{from}, 0, nil
	}

	heuristic := func(id int64) float64 {
		n, _ := rt.g.GetNode(id)
		return geo.CalculateHaversineDistance(n.Lat, n.Lon, target.Lat, target.Lon)
	}

	heap := NewMinHeap[int64]()
	heap.Insert(PriorityQueueNode[int64]{Rank: heuristic(from), Item: from})

	costSoFar := map[int64]float64{from: 0}
	cameFrom := make(map[int64]int64)

	for heap.Size() > 0 {
		current, _ := heap.ExtractMin()
		if current.Item == to {
			path := []int64{to}
			for curr := to; curr != from; {
				curr = cameFrom[curr]
				path = append(path, curr)
			}
			util.ReverseG(path)
			return path, costSoFar[to], nil
		}

		for _, e := range rt.g.OutEdges(current.Item) {
			newCost := costSoFar[current.Item] + e.Length
			old, seen := costSoFar[e.To]
			if seen && newCost >= old {
				continue
			}
			costSoFar[e.To] = newCost
			cameFrom[e.To] = current.Item

			node := PriorityQueueNode[int64]{Rank: newCost + heuristic(e.To), Item: e.To}
			if heap.Contains(e.To) {
				heap.DecreaseKey(node)
			} else {
				heap.Insert(node)
			}
		}
	}
	return nil, math.Inf(1), server.WrapErrorf(nil, server.ErrNotFound, "no path from %d to %d", from, to)
}

// PathLength sums the shortest parallel edge between consecutive nodes. Pairs without an edge count
// as the haversine distance between them.
func PathLength(g *datastructure.Graph, nodes []int64) float64 {
	total := 0.0
	for i := 1; i < len(nodes); i++ {
		best := math.Inf(1)
		for _, e := range g.EdgesBetween(nodes[i-1], nodes[i]) {
			best = math.Min(best, e.Length)
		}
		if math.IsInf(best, 1) {
			u, okU := g.GetNode(nodes[i-1])
			v, okV := g.GetNode(nodes[i])
			if !okU || !okV {
				continue
			}
			best = geo.CalculateHaversineDistance(u.Lat, u.Lon, v.Lat, v.Lon)
		}
		total += best
	}
	return total
}
