package repair

import (
	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/geometry"
	"lintang/runpathx/pkg/logger"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/spatialindex"
	"lintang/runpathx/pkg/util"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// DefaultMaxGap meters between two nodes that may be joined by a connector.
const DefaultMaxGap = 30.0

type Options struct {
	MaxGapM      float64
	ShowProgress bool
	Logger       *zap.Logger
}

func DefaultOptions() Options {
	return Options{MaxGapM: DefaultMaxGap}
}

// Report outcome of one repair pass.
type Report struct {
	CandidatePairs   int                     `json:"candidate_pairs"`
	AlreadyConnected int                     `json:"already_connected"`
	Crossing         int                     `json:"crossing"`
	Added            []spatialindex.NodePair `json:"added"`
	Edges            []datastructure.EdgeKey `json:"-"`
}

type connector struct {
	u, v   datastructure.Node
	length float64
}

// RepairGraph joins nearby nodes that have no edge between them with straight connector edges in both
// directions. A pair is skipped when its straight segment crosses an existing edge geometry.
// Candidates are judged against the edges that existed before the pass only.
func RepairGraph(g *datastructure.Graph, opts Options) (Report, error) {
	report := Report{Added: []spatialindex.NodePair{}}
	if g == nil {
		return report, server.WrapErrorf(nil, server.ErrInput, "repair: graph is nil")
	}
	if opts.MaxGapM <= 0 {
		opts.MaxGapM = DefaultMaxGap
	}
	log := logger.OrNop(opts.Logger)

	edgeIdx := spatialindex.NewEdgeIndex(g)
	nodeIdx := spatialindex.NewNodeIndex(g)
	pairs := nodeIdx.PairsWithinRadius(opts.MaxGapM)
	report.CandidatePairs = len(pairs)

	log.Debug("repair candidates",
		zap.Int("indexed_edges", edgeIdx.Size()),
		zap.Int("indexed_nodes", nodeIdx.Size()),
		zap.Int("pairs", len(pairs)),
		zap.Float64("max_gap_m", opts.MaxGapM))

	bar := util.NewProgressBar(len(pairs), "[cyan][1/2][reset] checking node pairs for missing connectors...", opts.ShowProgress)

	toAdd := []connector{}
	for _, pair := range pairs {
		bar.Add(1)
		if g.HasEdge(pair.U, pair.V) || g.HasEdge(pair.V, pair.U) {
			report.AlreadyConnected++
			continue
		}

		u, _ := g.GetNode(pair.U)
		v, _ := g.GetNode(pair.V)
		if crossesExisting(edgeIdx, u, v) {
			report.Crossing++
			continue
		}

		toAdd = append(toAdd, connector{
			u:      u,
			v:      v,
			length: geo.CalculateHaversineDistance(u.Lat, u.Lon, v.Lat, v.Lon),
		})
	}

	bar = util.NewProgressBar(len(toAdd), "[cyan][2/2][reset] adding connector edges...", opts.ShowProgress)
	for _, c := range toAdd {
		keys, err := addConnector(g, c)
		if err != nil {
			return report, err
		}
		report.Added = append(report.Added, spatialindex.NodePair{U: c.u.ID, V: c.v.ID})
		report.Edges = append(report.Edges, keys...)
		bar.Add(1)
	}

	log.Info("graph repaired",
		zap.Int("candidate_pairs", report.CandidatePairs),
		zap.Int("already_connected", report.AlreadyConnected),
		zap.Int("crossing", report.Crossing),
		zap.Int("added", len(report.Added)))
	return report, nil
}

func crossesExisting(edgeIdx *spatialindex.EdgeIndex, u, v datastructure.Node) bool {
	a := u.Coordinate().Point()
	b := v.Coordinate().Point()
	candBound := orb.MultiPoint{geometry.PointToMercator(a), geometry.PointToMercator(b)}.Bound()

	for _, hit := range edgeIdx.SearchIntersect(candBound) {
		if geometry.Intersects(a, b, hit.Geometry) {
			return true
		}
	}
	return false
}

func addConnector(g *datastructure.Graph, c connector) ([]datastructure.EdgeKey, error) {
	fwd := geometry.StraightLine(c.u.Coordinate(), c.v.Coordinate())
	bwd := geometry.StraightLine(c.v.Coordinate(), c.u.Coordinate())

	k1, err := g.AddEdge(datastructure.Edge{From: c.u.ID, To: c.v.ID, Geometry: fwd, Length: c.length})
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrProcessing, "add connector %d->%d", c.u.ID, c.v.ID)
	}
	k2, err := g.AddEdge(datastructure.Edge{From: c.v.ID, To: c.u.ID, Geometry: bwd, Length: c.length})
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrProcessing, "add connector %d->%d", c.v.ID, c.u.ID)
	}
	return []datastructure.EdgeKey{k1, k2}, nil
}

// ConnectNodes inserts a straight connector between u and v in both directions regardless of
// existing edges, for gaps found by hand.
func ConnectNodes(g *datastructure.Graph, u, v int64) ([]datastructure.EdgeKey, error) {
	if u == v {
		return nil, server.WrapErrorf(nil, server.ErrInput, "connect: node %d to itself", u)
	}
	nu, ok := g.GetNode(u)
	if !ok {
		return nil, server.WrapErrorf(nil, server.ErrNotFound, "connect: node %d not in graph", u)
	}
	nv, ok := g.GetNode(v)
	if !ok {
		return nil, server.WrapErrorf(nil, server.ErrNotFound, "connect: node %d not in graph", v)
	}
	return addConnector(g, connector{
		u:      nu,
		v:      nv,
		length: geo.CalculateHaversineDistance(nu.Lat, nu.Lon, nv.Lat, nv.Lon),
	})
}
