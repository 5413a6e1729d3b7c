package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/graphml"
	"lintang/runpathx/pkg/osmparser"
	"lintang/runpathx/pkg/repair"
	"lintang/runpathx/pkg/server"

	"go.uber.org/zap"
)

type graphFormat int

const (
	formatGraphML graphFormat = iota
	formatOsmPbf
	formatBinary
)

func formatOf(path string) graphFormat {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".osm.pbf"), strings.EqualFold(filepath.Ext(path), ".pbf"):
		return formatOsmPbf
	case strings.EqualFold(filepath.Ext(path), ".graphml"), strings.EqualFold(filepath.Ext(path), ".xml"):
		return formatGraphML
	default:
		return formatBinary
	}
}

// readGraph reads a graph file in any supported format, without repair.
func readGraph(ctx context.Context, path string) (*datastructure.Graph, error) {
	if path == "" {
		return nil, server.WrapErrorf(nil, server.ErrGraphLoad, "no graph path given (argument or graph.path)")
	}
	switch formatOf(path) {
	case formatOsmPbf:
		return osmparser.NewOSMParser(0, !noProgress, log).BuildGraphFromFile(ctx, path)
	case formatGraphML:
		return graphml.Load(path)
	default:
		return datastructure.LoadGraph(path)
	}
}

func writeGraph(g *datastructure.Graph, path string) error {
	if formatOf(path) == formatGraphML {
		return graphml.Save(g, path)
	}
	return g.SaveToFile(path)
}

// loadGraph returns the graph the matching commands run on: the binary cache when present, otherwise
// the graph file repaired once (graph.repair_on_load) and cached.
func loadGraph(ctx context.Context, path string) (*datastructure.Graph, error) {
	if path == "" {
		path = cfg.Graph.Path
	}
	cache := cfg.Graph.CachePath
	if cache != "" {
		if _, err := os.Stat(cache); err == nil {
			g, err := datastructure.LoadGraph(cache)
			if err == nil {
				log.Info("graph loaded from cache", zap.String("cache", cache),
					zap.Int("nodes", g.NumNodes()), zap.Int("edges", g.NumEdges()))
				return g, nil
			}
			log.Warn("graph cache unreadable, rebuilding", zap.String("cache", cache), zap.Error(err))
		}
	}

	g, err := readGraph(ctx, path)
	if err != nil {
		return nil, err
	}

	if cfg.Graph.RepairOnLoad {
		report, err := repair.RepairGraph(g, repair.Options{
			MaxGapM:      cfg.Graph.RepairMaxGapM,
			ShowProgress: !noProgress,
			Logger:       log,
		})
		if err != nil {
			return nil, err
		}
		log.Info("graph repaired on load", zap.Int("connectors", len(report.Added)))
	}

	if cache != "" {
		if err := g.SaveToFile(cache); err != nil {
			log.Warn("graph cache not written", zap.String("cache", cache), zap.Error(err))
		}
	}
	return g, nil
}
