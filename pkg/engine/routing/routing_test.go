package routing

import (
	"errors"
	"testing"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeap(t *testing.T) {
	h := NewMinHeap[int64]()
	for i, r := range []float64{5, 3, 8, 1, 9, 2} {
		h.Insert(PriorityQueueNode[int64]{Rank: r, Item: int64(i)})
	}
	require.NoError(t, h.DecreaseKey(PriorityQueueNode[int64]{Rank: 0.5, Item: 4}))
	assert.Error(t, h.DecreaseKey(PriorityQueueNode[int64]{Rank: 10, Item: 0}))

	min, err := h.GetMin()
	require.NoError(t, err)
	assert.Equal(t, int64(4), min.Item)

	got := []int64{}
	for h.Size() > 0 {
		n, err := h.ExtractMin()
		require.NoError(t, err)
		got = append(got, n.Item)
		assert.False(t, h.Contains(n.Item))
	}
	assert.Equal(t, []int64{4, 3, 5, 1, 0, 2}, got)

	_, err = h.ExtractMin()
	assert.Error(t, err)
}

func addBoth(t *testing.T, g *datastructure.Graph, u, v int64, length float64) {
	t.Helper()
	for _, p := range [][2]int64{{u, v}, {v, u}} {
		_, err := g.AddEdge(datastructure.Edge{From: p[0], To: p[1], Length: length})
		require.NoError(t, err)
	}
}

// square 1-2-3-4 with a long detour 1-4
func squareGraph(t *testing.T) *datastructure.Graph {
	g := datastructure.NewGraph()
	g.AddNode(1, 52.3700, 4.9000)
	g.AddNode(2, 52.3700, 4.9010)
	g.AddNode(3, 52.3710, 4.9010)
	g.AddNode(4, 52.3710, 4.9000)
	g.AddNode(5, 52.3800, 4.9500)
	addBoth(t, g, 1, 2, 68)
	addBoth(t, g, 2, 3, 111)
	addBoth(t, g, 3, 4, 68)
	addBoth(t, g, 1, 4, 500)
	return g
}

func TestShortestPath(t *testing.T) {
	rt := NewRouteAlgorithm(squareGraph(t))

	path, dist, err := rt.ShortestPath(1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4}, path)
	assert.Equal(t, 247.0, dist)

	path, dist, err = rt.ShortestPath(3, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, path)
	assert.Equal(t, 0.0, dist)
}

func TestShortestPathNotFound(t *testing.T) {
	rt := NewRouteAlgorithm(squareGraph(t))

	_, _, err := rt.ShortestPath(1, 5)
	assert.True(t, errors.Is(err, server.ErrNotFound))

	_, _, err = rt.ShortestPath(1, 42)
	assert.True(t, errors.Is(err, server.ErrNotFound))

	_, _, err = rt.ShortestPath(42, 1)
	assert.True(t, errors.Is(err, server.ErrNotFound))
}

func TestPathLength(t *testing.T) {
	g := squareGraph(t)
	_, err := g.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 60})
	require.NoError(t, err)

	assert.Equal(t, 60.0+111.0, PathLength(g, []int64{1, 2, 3}))
	assert.Equal(t, 0.0, PathLength(g, []int64{1}))

	want := geo.CalculateHaversineDistance(52.3700, 4.9000, 52.3710, 4.9010)
	assert.InDelta(t, want, PathLength(g, []int64{1, 3}), 1e-9)
}
