package runpath_test

import (
	"encoding/json"
	"errors"
	"testing"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/runpath"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/snapping"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a straight east-west street of four nodes ~68 m apart
func streetGraph(t *testing.T) *datastructure.Graph {
	t.Helper()
	g := datastructure.NewGraph()
	for i := 0; i < 4; i++ {
		g.AddNode(int64(i+1), 52.3700, 4.9000+float64(i)*0.001)
	}
	for i := 1; i < 4; i++ {
		for _, e := range [][2]int64{{int64(i), int64(i + 1)}, {int64(i + 1), int64(i)}} {
			from, _ := g.GetNode(e[0])
			to, _ := g.GetNode(e[1])
			_, err := g.AddEdge(datastructure.Edge{
				From:     e[0],
				To:       e[1],
				Geometry: orb.LineString{{from.Lon, from.Lat}, {to.Lon, to.Lat}},
				Length:   geo.CalculateHaversineDistance(from.Lat, from.Lon, to.Lat, to.Lon),
			})
			require.NoError(t, err)
		}
	}
	return g
}

func TestNewRunPath(t *testing.T) {
	g := streetGraph(t)
	points := []datastructure.Coordinate{
		{Lat: 52.37003, Lon: 4.90002},
		{Lat: 52.37003, Lon: 4.90002},
		{Lat: 52.36998, Lon: 4.90090},
		{Lat: 52.37002, Lon: 4.90195},
		{Lat: 52.37001, Lon: 4.90290},
	}

	rp, err := runpath.New(g, points, nil, runpath.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, points, rp.RawPoints())
	assert.Len(t, rp.CleanPoints(), 4)
	assert.Len(t, rp.SnappedRecords(), 4)
	assert.Equal(t, []int64{1, 2, 3, 4}, rp.NodeSequence())
	assert.Equal(t, int64(1), rp.StartNode())
	assert.Equal(t, int64(4), rp.EndNode())
	assert.Equal(t, 0, rp.NumFallbacks())

	for _, p := range rp.SnappedPoints() {
		assert.InDelta(t, 52.3700, p.Lat, 1e-6)
	}

	stats := rp.Stats()
	assert.Equal(t, 5, stats.NumRawPoints)
	assert.Equal(t, 4, stats.NumCleanPoints)
	assert.Equal(t, 4, stats.NumSnappedPoints)
	assert.Equal(t, 4, stats.NumNodes)
	assert.InDelta(t, 0.00288*67900, stats.TotalDistanceM, 2)
	require.NotNil(t, stats.AvgSpacingM)
	assert.InDelta(t, stats.TotalDistanceM/3, *stats.AvgSpacingM, 1e-9)
	assert.NotEmpty(t, rp.EncodedPolyline())
}

func TestNodeSequenceKeepsRevisits(t *testing.T) {
	g := streetGraph(t)
	// out and back: 1 -> 2 -> 1
	points := []datastructure.Coordinate{
		{Lat: 52.3700, Lon: 4.90001},
		{Lat: 52.3700, Lon: 4.90002},
		{Lat: 52.3700, Lon: 4.90098},
		{Lat: 52.3700, Lon: 4.90003},
	}

	rp, err := runpath.New(g, points, nil, runpath.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 1}, rp.NodeSequence())
}

func TestSinglePoint(t *testing.T) {
	rp, err := runpath.New(streetGraph(t), []datastructure.Coordinate{{Lat: 52.37, Lon: 4.9021}}, nil, runpath.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, rp.NodeSequence())
	assert.Equal(t, rp.StartNode(), rp.EndNode())
	assert.Nil(t, rp.Stats().AvgSpacingM)
	assert.Equal(t, 0.0, rp.Stats().TotalDistanceM)
}

func TestNewRunPathErrors(t *testing.T) {
	t.Run("empty trace", func(t *testing.T) {
		_, err := runpath.New(streetGraph(t), nil, nil, runpath.DefaultOptions())
		assert.True(t, errors.Is(err, server.ErrInput))
	})

	t.Run("graph without edges", func(t *testing.T) {
		g := datastructure.NewGraph()
		g.AddNode(1, 52.37, 4.9)
		_, err := runpath.New(g, []datastructure.Coordinate{{Lat: 52.37, Lon: 4.9}}, nil, runpath.DefaultOptions())
		assert.True(t, errors.Is(err, server.ErrProcessing))
	})
}

func TestSpeedSpikeRemovedWithTimes(t *testing.T) {
	g := streetGraph(t)
	points := []datastructure.Coordinate{
		{Lat: 52.3700, Lon: 4.9000},
		{Lat: 52.3700, Lon: 4.9001},
		{Lat: 52.3800, Lon: 4.9001},
	}
	rp, err := runpath.New(g, points, []float64{0, 2, 3}, runpath.DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, rp.CleanPoints(), 2)
	assert.Equal(t, 3, rp.Stats().NumRawPoints)
}

func TestSharedSnapper(t *testing.T) {
	g := streetGraph(t)
	opts := runpath.DefaultOptions()
	opts.Snapper = snapping.NewSnapper(g, nil)

	for _, lon := range []float64{4.9001, 4.9029} {
		rp, err := runpath.New(g, []datastructure.Coordinate{{Lat: 52.37, Lon: lon}}, nil, opts)
		require.NoError(t, err)
		assert.Len(t, rp.NodeSequence(), 1)
	}
}

func TestMarshalJSON(t *testing.T) {
	rp, err := runpath.New(streetGraph(t), []datastructure.Coordinate{{Lat: 52.37, Lon: 4.9001}}, nil, runpath.DefaultOptions())
	require.NoError(t, err)

	b, err := json.Marshal(rp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"start_node": 1,
		"end_node": 1,
		"node_sequence": [1],
		"stats": {
			"num_raw_points": 1,
			"num_clean_points": 1,
			"num_snapped_points": 1,
			"num_nodes": 1,
			"total_distance_m": 0,
			"avg_spacing_m": null
		}
	}`, string(b))
}

func TestFromStreams(t *testing.T) {
	body := []byte(`{"latlng": {"data": [[52.37, 4.9001], [52.37, 4.9019]]}, "time": {"data": [0, 20]}}`)
	rp, err := runpath.FromStreams(streetGraph(t), body, runpath.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, rp.NodeSequence())

	_, err = runpath.FromStreams(streetGraph(t), []byte(`{"time": [1]}`), runpath.DefaultOptions())
	assert.True(t, errors.Is(err, server.ErrInput))
}
