package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"lintang/runpathx/pkg/activity"
	"lintang/runpathx/pkg/concurrent"
	"lintang/runpathx/pkg/datastructure"
	"lintang/runpathx/pkg/engine/routing"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/kv"
	"lintang/runpathx/pkg/repair"
	"lintang/runpathx/pkg/resampling"
	"lintang/runpathx/pkg/runpath"
	"lintang/runpathx/pkg/server"
	"lintang/runpathx/pkg/server/rest"
	"lintang/runpathx/pkg/server/rest/service"
	"lintang/runpathx/pkg/snapping"
	"lintang/runpathx/pkg/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseNodeID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, server.WrapErrorf(err, server.ErrInput, "node id %q", s)
	}
	return id, nil
}

var importOsmCmd = &cobra.Command{
	Use:   "import-osm <extract.osm.pbf> <out.graphml|out.bin>",
	Short: "Build the pedestrian graph of an openstreetmap extract",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := readGraph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := writeGraph(g, args[1]); err != nil {
			return err
		}
		return printJSON(g.Stats())
	},
}

var repairMaxGap float64

var repairCmd = &cobra.Command{
	Use:   "repair <in> <out>",
	Short: "Connect nearby nodes that have no edge between them",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := readGraph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		maxGap := cfg.Graph.RepairMaxGapM
		if cmd.Flags().Changed("max-gap") {
			maxGap = repairMaxGap
		}
		report, err := repair.RepairGraph(g, repair.Options{MaxGapM: maxGap, ShowProgress: !noProgress, Logger: log})
		if err != nil {
			return err
		}
		if err := writeGraph(g, args[1]); err != nil {
			return err
		}
		return printJSON(report)
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <in> <out> <u> <v>",
	Short: "Add a straight connector between two nodes in both directions",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := parseNodeID(args[2])
		if err != nil {
			return err
		}
		v, err := parseNodeID(args[3])
		if err != nil {
			return err
		}
		g, err := readGraph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		keys, err := repair.ConnectNodes(g, u, v)
		if err != nil {
			return err
		}
		if err := writeGraph(g, args[1]); err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println("added", k.String())
		}
		return nil
	},
}

var (
	nearestLat float64
	nearestLon float64
	nearestK   int
)

type nearestNode struct {
	ID        int64   `json:"id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	DistanceM float64 `json:"distance_m"`
}

var nearestNodesCmd = &cobra.Command{
	Use:   "nearest-nodes <graph>",
	Short: "List the nodes closest to a coordinate, to pick ids for connect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := readGraph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		p := datastructure.NewCoordinate(nearestLat, nearestLon)
		out := []nearestNode{}
		for _, id := range snapping.NewSnapper(g, log).NearestNodes(p, nearestK) {
			n, _ := g.GetNode(id)
			out = append(out, nearestNode{
				ID:        id,
				Lat:       n.Lat,
				Lon:       n.Lon,
				DistanceM: util.RoundFloat(geo.PointDistance(p, n.Coordinate()), 2),
			})
		}
		return printJSON(out)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [graph]",
	Short: "Print node, edge and length totals of a graph",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Graph.Path
		if len(args) > 0 {
			path = args[0]
		}
		g, err := readGraph(cmd.Context(), path)
		if err != nil {
			return err
		}
		return printJSON(g.Stats())
	},
}

var (
	matchGraph string
	matchID    string
	matchSave  bool
	matchFull  bool
)

type matchOutput struct {
	ID            string                     `json:"id"`
	Summary       runpath.Summary            `json:"run"`
	Polyline      string                     `json:"polyline"`
	NumFallbacks  int                        `json:"num_fallbacks"`
	SnappedPoints []snapping.SnappedRecord   `json:"snapped_points,omitempty"`
	CleanPoints   []datastructure.Coordinate `json:"clean_points,omitempty"`
}

var matchCmd = &cobra.Command{
	Use:   "match <activity.json>",
	Short: "Match one activity onto the graph and print its run path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		act, err := activity.LoadFile(args[0])
		if err != nil {
			return err
		}
		g, err := loadGraph(cmd.Context(), matchGraph)
		if err != nil {
			return err
		}
		rp, err := runpath.FromActivity(g, act, runPathOptions())
		if err != nil {
			return err
		}

		id := act.ID
		if matchID != "" {
			id = matchID
		}
		if matchSave {
			store, err := kv.Open(cfg.Store.Dir, log)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.SaveRun(kv.NewRunRecord(id, rp)); err != nil {
				return err
			}
		}

		out := matchOutput{
			ID:           id,
			Summary:      rp.Summary(),
			Polyline:     rp.EncodedPolyline(),
			NumFallbacks: rp.NumFallbacks(),
		}
		if matchFull {
			out.SnappedPoints = rp.SnappedRecords()
			out.CleanPoints = rp.CleanPoints()
		}
		return printJSON(out)
	},
}

var (
	batchGraph string
	batchSave  bool
)

type batchResult struct {
	ID        string  `json:"id"`
	File      string  `json:"file"`
	NumNodes  int     `json:"num_nodes"`
	DistanceM float64 `json:"total_distance_m"`
	Fallbacks int     `json:"num_fallbacks"`
	Error     string  `json:"error,omitempty"`

	record *kv.RunRecord
}

var batchCmd = &cobra.Command{
	Use:   "batch <activity dir>",
	Short: "Match every activity json of a directory in parallel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := activity.ListDir(args[0])
		if err != nil {
			return err
		}
		g, err := loadGraph(cmd.Context(), batchGraph)
		if err != nil {
			return err
		}

		opts := runPathOptions()
		// one snapper for all workers, the graph is read-only from here on
		opts.Snapper = snapping.NewSnapper(g, log)

		var store *kv.KVDB
		if batchSave {
			store, err = kv.Open(cfg.Store.Dir, log)
			if err != nil {
				return err
			}
			defer store.Close()
		}

		matchFile := func(file string) batchResult {
			res := batchResult{File: file}
			act, err := activity.LoadFile(file)
			if err != nil {
				res.Error = err.Error()
				return res
			}
			res.ID = act.ID
			rp, err := runpath.FromActivity(g, act, opts)
			if err != nil {
				res.Error = err.Error()
				return res
			}
			rec := kv.NewRunRecord(act.ID, rp)
			res.NumNodes = len(rec.NodeSequence)
			res.DistanceM = util.RoundFloat(rec.TotalDistanceM, 2)
			res.Fallbacks = rp.NumFallbacks()
			res.record = &rec
			return res
		}

		bar := util.NewProgressBar(len(files), "[cyan][batch][reset] matching activities...", !noProgress)
		workers := concurrent.NewWorkerPool[string, batchResult](cfg.Matching.Workers, len(files))
		workers.Start(matchFile)
		go func() {
			for _, f := range files {
				workers.AddJob(f)
			}
			workers.Close()
			workers.Wait()
		}()

		results := []batchResult{}
		failed := 0
		for res := range workers.CollectResults() {
			bar.Add(1)
			if res.Error == "" && store != nil {
				if err := store.SaveRun(*res.record); err != nil {
					res.Error = err.Error()
				}
			}
			if res.Error != "" {
				failed++
				log.Warn("activity not matched", zap.String("file", res.File), zap.String("error", res.Error))
			}
			results = append(results, res)
		}

		log.Info("batch finished", zap.Int("activities", len(files)), zap.Int("failed", failed))
		return printJSON(results)
	},
}

var resampleSpacing float64

var resampleCmd = &cobra.Command{
	Use:   "resample <activity.json>",
	Short: "Resample the trace of an activity at a fixed spacing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		act, err := activity.LoadFile(args[0])
		if err != nil {
			return err
		}
		spacing := cfg.Matching.ResampleM
		if cmd.Flags().Changed("spacing") {
			spacing = resampleSpacing
		}
		return printJSON(resampling.Resample(act.LatLng, spacing))
	},
}

var routeGraph string

type routeOutput struct {
	Nodes     []int64 `json:"nodes"`
	DistanceM float64 `json:"distance_m"`
	Polyline  string  `json:"polyline"`
}

var routeCmd = &cobra.Command{
	Use:   "route <from node> <to node>",
	Short: "Shortest path between two node ids",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseNodeID(args[0])
		if err != nil {
			return err
		}
		to, err := parseNodeID(args[1])
		if err != nil {
			return err
		}
		g, err := loadGraph(cmd.Context(), routeGraph)
		if err != nil {
			return err
		}
		nodes, dist, err := routing.NewRouteAlgorithm(g).ShortestPath(from, to)
		if err != nil {
			return err
		}
		return printJSON(routeOutput{Nodes: nodes, DistanceM: util.RoundFloat(dist, 2), Polyline: g.RenderPath(nodes)})
	},
}

var (
	serveGraph    string
	serveProfiler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run matching http api",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, err := loadGraph(ctx, serveGraph)
		if err != nil {
			return err
		}
		store, err := kv.Open(cfg.Store.Dir, log)
		if err != nil {
			return err
		}
		defer store.Close()

		svc := service.NewRunService(g, store, routing.NewRouteAlgorithm(g), runPathOptions(), log)
		reg := prometheus.NewRegistry()
		h := rest.NewRouter(svc, reg, rest.RouterOptions{
			CorsOrigins:    cfg.Server.CorsOrigins,
			NearbyRadiusKm: cfg.Store.NearbyRadiusKm,
			Profiler:       serveProfiler,
			Logger:         log,
		})

		srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
		errCh := make(chan error, 1)
		go func() {
			log.Info("server started", zap.String("addr", cfg.Server.ListenAddr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	repairCmd.Flags().Float64Var(&repairMaxGap, "max-gap", repair.DefaultMaxGap, "max distance in meters between nodes to connect")

	nearestNodesCmd.Flags().Float64Var(&nearestLat, "lat", 0, "latitude")
	nearestNodesCmd.Flags().Float64Var(&nearestLon, "lon", 0, "longitude")
	nearestNodesCmd.Flags().IntVarP(&nearestK, "count", "k", 5, "number of nodes")
	_ = nearestNodesCmd.MarkFlagRequired("lat")
	_ = nearestNodesCmd.MarkFlagRequired("lon")

	matchCmd.Flags().StringVarP(&matchGraph, "graph", "g", "", "graph file, defaults to graph.path")
	matchCmd.Flags().StringVar(&matchID, "id", "", "run id, defaults to the file name")
	matchCmd.Flags().BoolVar(&matchSave, "save", false, "store the run in the run store")
	matchCmd.Flags().BoolVar(&matchFull, "full", false, "include clean and snapped points")

	batchCmd.Flags().StringVarP(&batchGraph, "graph", "g", "", "graph file, defaults to graph.path")
	batchCmd.Flags().BoolVar(&batchSave, "save", true, "store matched runs in the run store")

	resampleCmd.Flags().Float64Var(&resampleSpacing, "spacing", resampling.DefaultSpacing, "spacing in meters")

	routeCmd.Flags().StringVarP(&routeGraph, "graph", "g", "", "graph file, defaults to graph.path")

	serveCmd.Flags().StringVarP(&serveGraph, "graph", "g", "", "graph file, defaults to graph.path")
	serveCmd.Flags().BoolVar(&serveProfiler, "profiler", false, "mount net/http/pprof under /debug")
}
