package snapping

import (
	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/geometry"
	"lintang/runpathx/pkg/logger"
	"lintang/runpathx/pkg/spatialindex"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// SnappedRecord one input point after snapping.
type SnappedRecord struct {
	Original datastructure.Coordinate `json:"original"`
	Snapped  datastructure.Coordinate `json:"snapped"`
	// Geometry the curve the point was projected onto, nil when the nearest node was used instead.
	Geometry orb.LineString `json:"-"`
	ErrorM   float64        `json:"error_m"`
}

// Fallback true when the point was snapped to a node because no usable curve was found.
func (r SnappedRecord) Fallback() bool {
	return r.Geometry == nil
}

// Snapper snaps batches of points onto one graph. The indexes are built once per Snapper
// and assume the graph is not mutated afterwards.
type Snapper struct {
	g       *datastructure.Graph
	edgeIdx *spatialindex.EdgeIndex
	nodeIdx *spatialindex.NodeIndex
	log     *zap.Logger
}

func NewSnapper(g *datastructure.Graph, log *zap.Logger) *Snapper {
	return &Snapper{
		g:       g,
		edgeIdx: spatialindex.NewEdgeIndex(g),
		nodeIdx: spatialindex.NewNodeIndex(g),
		log:     logger.OrNop(log),
	}
}

// Snap snaps every point in order. It never fails: unusable edge geometry falls back to the nearest node.
func (s *Snapper) Snap(points []datastructure.Coordinate) []SnappedRecord {
	records := make([]SnappedRecord, len(points))
	for i, p := range points {
		records[i] = s.SnapPoint(p)
	}
	return records
}

func (s *Snapper) SnapPoint(p datastructure.Coordinate) SnappedRecord {
	pt := p.Point()

	if item, ok := s.edgeIdx.Nearest(pt); ok {
		if ls, usable := geometry.Normalize(item.Geometry); usable && !geometry.IsZeroLength(ls) {
			snapped := datastructure.CoordinateFromPoint(geometry.ProjectOntoCurve(ls, pt))
			return SnappedRecord{
				Original: p,
				Snapped:  snapped,
				Geometry: ls,
				ErrorM:   geo.PointDistance(p, snapped),
			}
		}
		s.log.Debug("unusable edge geometry, snapping to nearest node",
			zap.Stringer("edge", item.Key),
			zap.String("geometry_type", geometryType(item.Geometry)),
			zap.Float64("lat", p.Lat),
			zap.Float64("lon", p.Lon))
	}

	snapped := p
	if node, ok := s.nodeIdx.Nearest(pt); ok {
		snapped = node.Coord
	}
	return SnappedRecord{
		Original: p,
		Snapped:  snapped,
		ErrorM:   geo.PointDistance(p, snapped),
	}
}

// NearestEdge key of the edge whose geometry is closest to p.
func (s *Snapper) NearestEdge(p datastructure.Coordinate) (datastructure.EdgeKey, bool) {
	item, ok := s.edgeIdx.Nearest(p.Point())
	if !ok {
		return datastructure.EdgeKey{}, false
	}
	return item.Key, true
}

// NearestNode id of the node closest to p.
func (s *Snapper) NearestNode(p datastructure.Coordinate) (int64, bool) {
	item, ok := s.nodeIdx.Nearest(p.Point())
	if !ok {
		return 0, false
	}
	return item.ID, true
}

// NearestNodes up to k node ids ordered by distance to p.
func (s *Snapper) NearestNodes(p datastructure.Coordinate, k int) []int64 {
	items := s.nodeIdx.NearestK(p.Point(), k)
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "none"
	}
	return g.GeoJSONType()
}
