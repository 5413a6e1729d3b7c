package service

import (
	"context"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/kv"
	"lintang/runpathx/pkg/logger"
	"lintang/runpathx/pkg/runpath"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/snapping"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RunStore interface {
	SaveRun(rec kv.RunRecord) error
	GetRun(id string) (kv.RunRecord, error)
	GetRunsNearPoint(lat, lon, radiusKm float64) ([]kv.RunRecord, error)
}

type RoutingAlgorithm interface {
	ShortestPath(from, to int64) ([]int64, float64, error)
}

// RunService matches runs against one repaired graph. The graph must not be mutated once the service
// is built.
type RunService struct {
	g       *datastructure.Graph
	store   RunStore
	routing RoutingAlgorithm
	snapper *snapping.Snapper
	opts    runpath.Options
	log     *zap.Logger
}

func NewRunService(g *datastructure.Graph, store RunStore, routing RoutingAlgorithm, opts runpath.Options,
	log *zap.Logger) *RunService {
	log = logger.OrNop(log)
	if opts.Snapper == nil {
		opts.Snapper = snapping.NewSnapper(g, log)
	}
	opts.Logger = log
	return &RunService{
		g:       g,
		store:   store,
		routing: routing,
		snapper: opts.Snapper,
		opts:    opts,
		log:     log,
	}
}

type MatchResult struct {
	Run       *runpath.RunPath
	Record    kv.RunRecord
	Fallbacks int
}

// MatchRun builds the run path of a trace and stores it. An empty id gets a generated one.
func (s *RunService) MatchRun(ctx context.Context, id string, points []datastructure.Coordinate,
	times []float64) (MatchResult, error) {
	rp, err := runpath.New(s.g, points, times, s.opts)
	if err != nil {
		return MatchResult{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	rec := kv.NewRunRecord(id, rp)
	if s.store != nil {
		if err := s.store.SaveRun(rec); err != nil {
			return MatchResult{}, err
		}
	}
	return MatchResult{Run: rp, Record: rec, Fallbacks: rp.NumFallbacks()}, nil
}

func (s *RunService) GetRun(ctx context.Context, id string) (kv.RunRecord, error) {
	if s.store == nil {
		return kv.RunRecord{}, server.WrapErrorf(nil, server.ErrNotFound, "run store disabled")
	}
	return s.store.GetRun(id)
}

func (s *RunService) NearbyRuns(ctx context.Context, lat, lon, radiusKm float64) ([]kv.RunRecord, error) {
	if s.store == nil {
		return []kv.RunRecord{}, nil
	}
	return s.store.GetRunsNearPoint(lat, lon, radiusKm)
}

type RouteResult struct {
	Nodes     []int64
	DistanceM float64
	Polyline  string
}

// ShortestPath routes between the graph nodes nearest to the two coordinates.
func (s *RunService) ShortestPath(ctx context.Context, srcLat, srcLon, dstLat, dstLon float64) (RouteResult, error) {
	from, ok := s.snapper.NearestNode(datastructure.NewCoordinate(srcLat, srcLon))
	if !ok {
		return RouteResult{}, server.WrapErrorf(nil, server.ErrNotFound, "graph has no nodes")
	}
	to, _ := s.snapper.NearestNode(datastructure.NewCoordinate(dstLat, dstLon))

	nodes, dist, err := s.routing.ShortestPath(from, to)
	if err != nil {
		return RouteResult{}, err
	}
	s.log.Debug("shortest path", zap.Int64("from", from), zap.Int64("to", to), zap.Float64("distance_m", dist))
	return RouteResult{Nodes: nodes, DistanceM: dist, Polyline: s.g.RenderPath(nodes)}, nil
}

func (s *RunService) GraphStats(ctx context.Context) datastructure.GraphStats {
	return s.g.Stats()
}
