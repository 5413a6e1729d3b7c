package osmparser

import (
	"context"
	"io"
	"os"
	"regexp"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/logger"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/util"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"
)

type OsmParser struct {
	procs        int
	showProgress bool
	log          *zap.Logger
}

func NewOSMParser(procs int, showProgress bool, log *zap.Logger) *OsmParser {
	if procs <= 0 {
		procs = 3
	}
	return &OsmParser{
		procs:        procs,
		showProgress: showProgress,
		log:          logger.OrNop(log),
	}
}

// BuildGraphFromFile builds the pedestrian network of an .osm.pbf extract. The first pass keeps walkable
// ways, the second pass reads the coordinates of their nodes.
func (p *OsmParser) BuildGraphFromFile(ctx context.Context, path string) (*datastructure.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrGraphLoad, "open osm file %s", path)
	}
	defer f.Close()

	bar := util.NewProgressBar(-1, "[cyan][1/3][reset] reading openstreetmap ways...", p.showProgress)
	scanner := osmpbf.New(ctx, f, p.procs)
	ways := []*osm.Way{}
	wayNodes := make(map[osm.NodeID]struct{})
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		bar.Add(1)
		if !isOsmWayUsedByPedestrians(way.TagMap()) || len(way.Nodes) < 2 {
			continue
		}
		ways = append(ways, way)
		for _, n := range way.Nodes {
			wayNodes[n.ID] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, server.WrapErrorf(err, server.ErrGraphLoad, "scan ways of %s", path)
	}
	scanner.Close()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, server.WrapErrorf(err, server.ErrGraphLoad, "rewind %s", path)
	}

	bar = util.NewProgressBar(len(wayNodes), "[cyan][2/3][reset] reading openstreetmap nodes...", p.showProgress)
	nodes := make(map[osm.NodeID]*osm.Node, len(wayNodes))
	scanner = osmpbf.New(ctx, f, p.procs)
	defer scanner.Close()
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, used := wayNodes[node.ID]; used {
			nodes[node.ID] = node
			bar.Add(1)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, server.WrapErrorf(err, server.ErrGraphLoad, "scan nodes of %s", path)
	}

	p.log.Info("openstreetmap extract scanned",
		zap.String("file", path),
		zap.Int("ways", len(ways)),
		zap.Int("nodes", len(nodes)))

	g := p.BuildGraph(ways, nodes)
	if g.NumEdges() == 0 {
		return nil, server.WrapErrorf(nil, server.ErrGraphLoad, "%s has no walkable ways", path)
	}
	return g, nil
}

// BuildGraph splits every way into one edge per pair of consecutive way nodes, in both directions.
// Segments with an endpoint missing from nodes are skipped.
func (p *OsmParser) BuildGraph(ways []*osm.Way, nodes map[osm.NodeID]*osm.Node) *datastructure.Graph {
	g := datastructure.NewGraph()
	bar := util.NewProgressBar(len(ways), "[cyan][3/3][reset] building pedestrian graph...", p.showProgress)

	skipped := 0
	for _, way := range ways {
		name := way.Tags.Find("name")
		highway := way.Tags.Find("highway")

		for i := 1; i < len(way.Nodes); i++ {
			from, okFrom := nodes[way.Nodes[i-1].ID]
			to, okTo := nodes[way.Nodes[i].ID]
			if !okFrom || !okTo {
				skipped++
				continue
			}
			if from.ID == to.ID {
				continue
			}

			g.AddNode(int64(from.ID), from.Lat, from.Lon)
			g.AddNode(int64(to.ID), to.Lat, to.Lon)
			length := geo.CalculateHaversineDistance(from.Lat, from.Lon, to.Lat, to.Lon)

			for _, dir := range [2][2]*osm.Node{{from, to}, {to, from}} {
				// both endpoints were just added
				g.AddEdge(datastructure.Edge{
					From:    int64(dir[0].ID),
					To:      int64(dir[1].ID),
					Length:  length,
					Name:    name,
					Highway: highway,
				})
			}
		}
		bar.Add(1)
	}

	if skipped > 0 {
		p.log.Warn("way segments without node coordinates skipped", zap.Int("segments", skipped))
	}
	return g
}

var (
	excludedHighway = regexp.MustCompile(`abandoned|bus_guideway|construction|cycleway|motor|no|planned|platform|proposed|raceway|razed`)
	noFoot          = regexp.MustCompile(`no`)
	private         = regexp.MustCompile(`private`)
	areaYes         = regexp.MustCompile(`yes`)
)

// isOsmWayUsedByPedestrians walk network filter of osmnx:
// ["highway"]["area"!~"yes"]["access"!~"private"]["highway"!~"abandoned|...|razed"]["foot"!~"no"]["service"!~"private"]
func isOsmWayUsedByPedestrians(tagMap map[string]string) bool {
	highway, ok := tagMap["highway"]
	if !ok {
		return false
	}
	if excludedHighway.MatchString(highway) {
		return false
	}
	if area, ok := tagMap["area"]; ok && areaYes.MatchString(area) {
		return false
	}
	if access, ok := tagMap["access"]; ok && private.MatchString(access) {
		return false
	}
	if foot, ok := tagMap["foot"]; ok && noFoot.MatchString(foot) {
		return false
	}
	if service, ok := tagMap["service"]; ok && private.MatchString(service) {
		return false
	}
	return true
}
