package repair_test

import (
	"errors"
	"math"
	"testing"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/repair"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/spatialindex"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// two nodes ~10 m apart on an east-west line
func gapGraph() *datastructure.Graph {
	g := datastructure.NewGraph()
	g.AddNode(1, 52.3700, 4.900000)
	g.AddNode(2, 52.3700, 4.900147)
	return g
}

func TestRepairGraphAddsConnector(t *testing.T) {
	g := gapGraph()

	report, err := repair.RepairGraph(g, repair.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, report.CandidatePairs)
	assert.Equal(t, []spatialindex.NodePair{{U: 1, V: 2}}, report.Added)
	assert.Len(t, report.Edges, 2)
	assert.Equal(t, 2, g.NumEdges())

	fwd := g.EdgesBetween(1, 2)
	bwd := g.EdgesBetween(2, 1)
	require.Len(t, fwd, 1)
	require.Len(t, bwd, 1)
	assert.InDelta(t, 10.0, fwd[0].Length, 0.1)
	assert.Equal(t, fwd[0].Length, bwd[0].Length)
	assert.Equal(t, orb.LineString{{4.900000, 52.3700}, {4.900147, 52.3700}}, fwd[0].Geometry)
}

func TestRepairGraphRejectsCrossing(t *testing.T) {
	g := gapGraph()
	// a road ~110 m each side of the gap, cutting straight through it
	g.AddNode(3, 52.3690, 4.90007)
	g.AddNode(4, 52.3710, 4.90007)
	_, err := g.AddEdge(datastructure.Edge{
		From:     3,
		To:       4,
		Geometry: orb.LineString{{4.90007, 52.3690}, {4.90007, 52.3710}},
		Length:   222,
	})
	require.NoError(t, err)

	report, err := repair.RepairGraph(g, repair.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Crossing)
	assert.Empty(t, report.Added)
	assert.False(t, g.HasEdge(1, 2))
	assert.Equal(t, 1, g.NumEdges())
}

func TestRepairGraphIgnoresContactAtEndpoints(t *testing.T) {
	g := gapGraph()
	g.AddNode(5, 52.3710, 4.9000)
	_, err := g.AddEdge(datastructure.Edge{From: 1, To: 5, Length: 111})
	require.NoError(t, err)

	report, err := repair.RepairGraph(g, repair.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Crossing)
	assert.Equal(t, []spatialindex.NodePair{{U: 1, V: 2}}, report.Added)
	assert.True(t, g.HasEdge(1, 2))
	assert.True(t, g.HasEdge(2, 1))
}

func TestRepairGraphSkipsConnectedPairs(t *testing.T) {
	g := gapGraph()
	_, err := g.AddEdge(datastructure.Edge{From: 2, To: 1, Length: 10})
	require.NoError(t, err)

	report, err := repair.RepairGraph(g, repair.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, report.AlreadyConnected)
	assert.Empty(t, report.Added)
	assert.Equal(t, 1, g.NumEdges())
}

func TestRepairGraphRespectsMaxGap(t *testing.T) {
	g := gapGraph()
	report, err := repair.RepairGraph(g, repair.Options{MaxGapM: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, report.CandidatePairs)
	assert.Equal(t, 0, g.NumEdges())
}

func TestRepairGraphNoNewEdgeCrossesOldGeometry(t *testing.T) {
	g := datastructure.NewGraph()
	for i := 0; i < 5; i++ {
		g.AddNode(int64(10+i), 52.3700, 4.9000+float64(i)*0.0002)
		g.AddNode(int64(20+i), 52.3701, 4.9000+float64(i)*0.0002)
	}
	g.AddNode(30, 52.36995, 4.9003)
	g.AddNode(31, 52.37015, 4.9003)
	_, err := g.AddEdge(datastructure.Edge{From: 30, To: 31, Length: 22})
	require.NoError(t, err)
	before := g.Edges()

	report, err := repair.RepairGraph(g, repair.DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, report.Edges)

	for _, key := range report.Edges {
		added, ok := g.GetEdge(key)
		require.True(t, ok)
		ls := added.Geometry.(orb.LineString)
		for _, old := range before {
			oldLs := g.EdgeGeometry(old).(orb.LineString)
			for i := 1; i < len(oldLs); i++ {
				assert.False(t, sharesMoreThanEndpoint(ls[0], ls[1], oldLs[i-1], oldLs[i]),
					"connector %s crosses %s", key, old.EdgeKey())
			}
		}
	}
}

func TestRepairGraphNil(t *testing.T) {
	_, err := repair.RepairGraph(nil, repair.DefaultOptions())
	assert.True(t, errors.Is(err, server.ErrInput))
}

func TestConnectNodes(t *testing.T) {
	g := gapGraph()

	keys, err := repair.ConnectNodes(g, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.EdgeKey{{From: 1, To: 2}, {From: 2, To: 1}}, keys)
	assert.Equal(t, 2, g.NumEdges())

	_, err = repair.ConnectNodes(g, 1, 99)
	assert.True(t, errors.Is(err, server.ErrNotFound))

	_, err = repair.ConnectNodes(g, 1, 1)
	assert.True(t, errors.Is(err, server.ErrInput))
}

func TestRepairGraphRejectsConnectorAlongExistingEdge(t *testing.T) {
	// 1, 2 and 3 on one east-west line, 5 m and 10 m apart
	g := datastructure.NewGraph()
	g.AddNode(1, 52.3700, 4.900000)
	g.AddNode(2, 52.3700, 4.900074)
	g.AddNode(3, 52.3700, 4.900221)
	_, err := g.AddEdge(datastructure.Edge{From: 1, To: 2, Length: 5})
	require.NoError(t, err)
	before := g.Edges()

	report, err := repair.RepairGraph(g, repair.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, report.CandidatePairs)
	assert.Equal(t, 1, report.AlreadyConnected)
	assert.Equal(t, 1, report.Crossing)
	assert.Equal(t, []spatialindex.NodePair{{U: 2, V: 3}}, report.Added)
	assert.False(t, g.HasEdge(1, 3))
	assert.False(t, g.HasEdge(3, 1))

	for _, key := range report.Edges {
		added, ok := g.GetEdge(key)
		require.True(t, ok)
		ls := added.Geometry.(orb.LineString)
		for _, old := range before {
			oldLs := g.EdgeGeometry(old).(orb.LineString)
			assert.False(t, sharesMoreThanEndpoint(ls[0], ls[1], oldLs[0], oldLs[1]))
		}
	}
}

// sharesMoreThanEndpoint plain lon/lat test: c-d meets a-b somewhere other than at a or b alone.
func sharesMoreThanEndpoint(a, b, c, d orb.Point) bool {
	cross := func(o, p, q orb.Point) float64 {
		return (p[0]-o[0])*(q[1]-o[1]) - (p[1]-o[1])*(q[0]-o[0])
	}
	if cross(a, b, c)*cross(a, b, d) < 0 && cross(c, d, a)*cross(c, d, b) < 0 {
		return true
	}
	// r on p-q, not at either end
	inside := func(p, q, r orb.Point) bool {
		if r == p || r == q || math.Abs(cross(p, q, r)) > 1e-14 {
			return false
		}
		return math.Min(p[0], q[0]) <= r[0] && r[0] <= math.Max(p[0], q[0]) &&
			math.Min(p[1], q[1]) <= r[1] && r[1] <= math.Max(p[1], q[1])
	}
	if inside(a, b, c) || inside(a, b, d) {
		return true
	}
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	return inside(c, d, mid) || mid == c || mid == d
}
