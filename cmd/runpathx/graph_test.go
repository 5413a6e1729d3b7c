package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lintang/runpathx/pkg/config"
	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatOf(t *testing.T) {
	assert.Equal(t, formatOsmPbf, formatOf("amsterdam-latest.osm.pbf"))
	assert.Equal(t, formatGraphML, formatOf("walk.graphml"))
	assert.Equal(t, formatGraphML, formatOf("walk.XML"))
	assert.Equal(t, formatBinary, formatOf("walk.bin"))
}

// a gap of ~10 m between node 2 and node 3
func gapGraph(t *testing.T) *datastructure.Graph {
	g := datastructure.NewGraph()
	g.AddNode(1, 52.3700, 4.899000)
	g.AddNode(2, 52.3700, 4.900000)
	g.AddNode(3, 52.3700, 4.900147)
	g.AddNode(4, 52.3700, 4.901147)
	for _, e := range [][2]int64{{1, 2}, {2, 1}, {3, 4}, {4, 3}} {
		_, err := g.AddEdge(datastructure.Edge{From: e[0], To: e[1], Length: 68})
		require.NoError(t, err)
	}
	return g
}

func TestLoadGraphRepairsAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "walk.graphml")
	require.NoError(t, writeGraph(gapGraph(t), path))

	log = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Graph.CachePath = filepath.Join(dir, "walk.bin")
	noProgress = true

	g, err := loadGraph(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, g.HasEdge(2, 3))
	assert.True(t, g.HasEdge(3, 2))

	cached, err := datastructure.LoadGraph(cfg.Graph.CachePath)
	require.NoError(t, err)
	assert.Equal(t, g.NumEdges(), cached.NumEdges())

	// the cache wins over the graph file from now on
	again, err := loadGraph(context.Background(), filepath.Join(dir, "missing.graphml"))
	require.NoError(t, err)
	assert.True(t, again.HasEdge(2, 3))
}

func TestLoadGraphWithoutRepair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.bin")
	require.NoError(t, writeGraph(gapGraph(t), path))

	log = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Graph.RepairOnLoad = false

	g, err := loadGraph(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, g.HasEdge(2, 3))

	_, err = loadGraph(context.Background(), "")
	assert.True(t, errors.Is(err, server.ErrGraphLoad))
}
