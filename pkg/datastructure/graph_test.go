package datastructure_test

import (
	"path/filepath"
	"testing"

	"lintang/runpathx/pkg/datastructure"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph(t *testing.T) *datastructure.Graph {
	t.Helper()
	g := datastructure.NewGraph()
	g.AddNode(1, 52.3700, 4.9000)
	g.AddNode(2, 52.3700, 4.9010)
	g.AddNode(3, 52.3710, 4.9010)

	_, err := g.AddEdge(datastructure.Edge{
		From:     1,
		To:       2,
		Geometry: orb.LineString{{4.9000, 52.3700}, {4.9005, 52.3701}, {4.9010, 52.3700}},
		Length:   70,
		Name:     "Damrak",
		Highway:  "footway",
	})
	require.NoError(t, err)
	_, err = g.AddEdge(datastructure.Edge{From: 2, To: 1, Length: 70})
	require.NoError(t, err)
	_, err = g.AddEdge(datastructure.Edge{From: 2, To: 3, Length: 111})
	require.NoError(t, err)
	return g
}

func TestGraphEdges(t *testing.T) {
	g := sampleGraph(t)

	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, 3, g.NumEdges())
	assert.True(t, g.HasEdge(1, 2))
	assert.True(t, g.HasEdge(2, 1))
	assert.False(t, g.HasEdge(3, 2))
	assert.Equal(t, []int64{1, 2, 3}, g.NodeIDs())
	assert.Len(t, g.OutEdges(2), 2)

	t.Run("parallel edges get increasing keys", func(t *testing.T) {
		k, err := g.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 80})
		require.NoError(t, err)
		assert.Equal(t, datastructure.EdgeKey{From: 1, To: 2, Key: 1}, k)
		assert.Len(t, g.EdgesBetween(1, 2), 2)

		e, ok := g.GetEdge(k)
		require.True(t, ok)
		assert.Equal(t, 80.0, e.Length)
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		_, err := g.AddEdge(datastructure.Edge{From: 1, To: 99})
		assert.Error(t, err)
	})

	t.Run("straight geometry fallback", func(t *testing.T) {
		e, ok := g.GetEdge(datastructure.EdgeKey{From: 2, To: 3})
		require.True(t, ok)
		assert.Equal(t, orb.LineString{{4.9010, 52.3700}, {4.9010, 52.3710}}, g.EdgeGeometry(e))
	})
}

func TestGraphStats(t *testing.T) {
	g := sampleGraph(t)
	stats := g.Stats()
	assert.Equal(t, 3, stats.NumNodes)
	assert.Equal(t, 3, stats.NumEdges)
	assert.InDelta(t, 251.0, stats.TotalLengthM, 1e-9)
	assert.InDelta(t, 1.0, stats.MeanDegree, 1e-9)
}

func TestSaveAndLoadGraph(t *testing.T) {
	g := sampleGraph(t)
	path := filepath.Join(t.TempDir(), "graph.bin")

	require.NoError(t, g.SaveToFile(path))
	loaded, err := datastructure.LoadGraph(path)
	require.NoError(t, err)

	assert.Equal(t, g.NodeIDs(), loaded.NodeIDs())
	assert.Equal(t, g.NumEdges(), loaded.NumEdges())

	e, ok := loaded.GetEdge(datastructure.EdgeKey{From: 1, To: 2})
	require.True(t, ok)
	assert.Equal(t, "Damrak", e.Name)
	assert.Equal(t, "footway", e.Highway)
	assert.Equal(t, orb.LineString{{4.9000, 52.3700}, {4.9005, 52.3701}, {4.9010, 52.3700}}, e.Geometry)

	back, ok := loaded.GetEdge(datastructure.EdgeKey{From: 2, To: 1})
	require.True(t, ok)
	assert.Nil(t, back.Geometry)
}

func TestLoadGraphMissingFile(t *testing.T) {
	_, err := datastructure.LoadGraph(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestRenderPath(t *testing.T) {
	g := sampleGraph(t)
	assert.NotEmpty(t, g.RenderPath([]int64{1, 2, 3}))
	assert.Equal(t, "", g.RenderPath(nil))
}
