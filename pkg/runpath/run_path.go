package runpath

import (
	"encoding/json"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/logger"
	"lintang/runpathx/pkg/resampling"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/snapping"

	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"
)

// Stats summary of one run. AvgSpacingM is nil with fewer than two snapped points.
type Stats struct {
	NumRawPoints     int      `json:"num_raw_points"`
	NumCleanPoints   int      `json:"num_clean_points"`
	NumSnappedPoints int      `json:"num_snapped_points"`
	NumNodes         int      `json:"num_nodes"`
	TotalDistanceM   float64  `json:"total_distance_m"`
	AvgSpacingM      *float64 `json:"avg_spacing_m"`
}

type Options struct {
	Preprocess geo.PreprocessOptions
	// Snapper reused across runs on the same graph; built from the graph when nil.
	Snapper *snapping.Snapper
	Logger  *zap.Logger
}

func DefaultOptions() Options {
	return Options{Preprocess: geo.DefaultPreprocessOptions()}
}

// RunPath a GPS trace aligned onto the road graph. Immutable once built.
type RunPath struct {
	rawPoints      []datastructure.Coordinate
	cleanPoints    []datastructure.Coordinate
	snappedRecords []snapping.SnappedRecord
	snappedPoints  []datastructure.Coordinate
	nodeSequence   []int64
	startNode      int64
	endNode        int64
	stats          Stats
}

// New cleans, snaps and reduces the trace to a node sequence. times may be nil; when given it must be
// aligned with points for speed spike removal to apply.
func New(g *datastructure.Graph, points []datastructure.Coordinate, times []float64, opts Options) (*RunPath, error) {
	if len(points) == 0 {
		return nil, server.WrapErrorf(nil, server.ErrInput, "run path requires at least one GPS point")
	}
	if g == nil {
		return nil, server.WrapErrorf(nil, server.ErrInput, "run path requires a graph")
	}
	log := logger.OrNop(opts.Logger)

	rp := &RunPath{
		rawPoints: append([]datastructure.Coordinate(nil), points...),
	}

	rp.cleanPoints = geo.Preprocess(points, times, opts.Preprocess)

	snapper := opts.Snapper
	if snapper == nil {
		snapper = snapping.NewSnapper(g, log)
	}
	rp.snappedRecords = snapper.Snap(rp.cleanPoints)
	rp.snappedPoints = make([]datastructure.Coordinate, len(rp.snappedRecords))
	for i, rec := range rp.snappedRecords {
		rp.snappedPoints[i] = rec.Snapped
	}

	rp.nodeSequence = computeNodeSequence(g, snapper, rp.snappedPoints)
	if len(rp.nodeSequence) == 0 {
		return nil, server.WrapErrorf(nil, server.ErrProcessing,
			"failed to compute a node sequence for %d snapped points", len(rp.snappedPoints))
	}
	rp.startNode = rp.nodeSequence[0]
	rp.endNode = rp.nodeSequence[len(rp.nodeSequence)-1]
	rp.stats = rp.computeStats()

	log.Debug("run path built",
		zap.Int("raw", rp.stats.NumRawPoints),
		zap.Int("clean", rp.stats.NumCleanPoints),
		zap.Int("nodes", rp.stats.NumNodes),
		zap.Int("fallbacks", rp.NumFallbacks()),
		zap.Float64("distance_m", rp.stats.TotalDistanceM))
	return rp, nil
}

// computeNodeSequence picks, per snapped point, the closer endpoint of its nearest edge (u on ties)
// and collapses consecutive repeats.
func computeNodeSequence(g *datastructure.Graph, snapper *snapping.Snapper, snapped []datastructure.Coordinate) []int64 {
	nodes := make([]int64, 0, len(snapped))
	for _, p := range snapped {
		key, ok := snapper.NearestEdge(p)
		if !ok {
			continue
		}
		u, okU := g.GetNode(key.From)
		v, okV := g.GetNode(key.To)
		if !okU || !okV {
			continue
		}

		dU := geo.PointDistance(p, u.Coordinate())
		dV := geo.PointDistance(p, v.Coordinate())
		closest := u.ID
		if dV < dU {
			closest = v.ID
		}

		if len(nodes) > 0 && nodes[len(nodes)-1] == closest {
			continue
		}
		nodes = append(nodes, closest)
	}
	return nodes
}

func (rp *RunPath) computeStats() Stats {
	total := resampling.PolylineLength(rp.snappedPoints)
	stats := Stats{
		NumRawPoints:     len(rp.rawPoints),
		NumCleanPoints:   len(rp.cleanPoints),
		NumSnappedPoints: len(rp.snappedPoints),
		NumNodes:         len(rp.nodeSequence),
		TotalDistanceM:   total,
	}
	if len(rp.snappedPoints) > 1 {
		avg := total / float64(len(rp.snappedPoints)-1)
		stats.AvgSpacingM = &avg
	}
	return stats
}

func (rp *RunPath) RawPoints() []datastructure.Coordinate {
	return append([]datastructure.Coordinate(nil), rp.rawPoints...)
}

func (rp *RunPath) CleanPoints() []datastructure.Coordinate {
	return append([]datastructure.Coordinate(nil), rp.cleanPoints...)
}

func (rp *RunPath) SnappedRecords() []snapping.SnappedRecord {
	return append([]snapping.SnappedRecord(nil), rp.snappedRecords...)
}

func (rp *RunPath) SnappedPoints() []datastructure.Coordinate {
	return append([]datastructure.Coordinate(nil), rp.snappedPoints...)
}

func (rp *RunPath) NodeSequence() []int64 {
	return append([]int64(nil), rp.nodeSequence...)
}

func (rp *RunPath) StartNode() int64 {
	return rp.startNode
}

func (rp *RunPath) EndNode() int64 {
	return rp.endNode
}

func (rp *RunPath) Stats() Stats {
	s := rp.stats
	if s.AvgSpacingM != nil {
		avg := *s.AvgSpacingM
		s.AvgSpacingM = &avg
	}
	return s
}

// NumFallbacks snapped records that used the nearest node instead of an edge curve.
func (rp *RunPath) NumFallbacks() int {
	n := 0
	for _, rec := range rp.snappedRecords {
		if rec.Fallback() {
			n++
		}
	}
	return n
}

// EncodedPolyline snapped points as a google encoded polyline.
func (rp *RunPath) EncodedPolyline() string {
	return string(polyline.EncodeCoords(datastructure.LatLngs(rp.snappedPoints)))
}

// Summary serialized form of a run path.
type Summary struct {
	StartNode    int64   `json:"start_node"`
	EndNode      int64   `json:"end_node"`
	NodeSequence []int64 `json:"node_sequence"`
	Stats        Stats   `json:"stats"`
}

func (rp *RunPath) Summary() Summary {
	return Summary{
		StartNode:    rp.startNode,
		EndNode:      rp.endNode,
		NodeSequence: rp.NodeSequence(),
		Stats:        rp.Stats(),
	}
}

func (rp *RunPath) MarshalJSON() ([]byte, error) {
	return json.Marshal(rp.Summary())
}
