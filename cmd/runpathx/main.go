package main

import (
	"fmt"
	"os"

	"lintang/runpathx/pkg/config"
	"lintang/runpathx/pkg/geo"
	"lintang/runpathx/pkg/logger"
	"lintang/runpathx/pkg/runpath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rootCmd = &cobra.Command{
		Use:           "runpathx",
		Short:         "Align GPS running traces onto a pedestrian road network",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	configPath string
	logLevel   string
	noProgress bool

	cfg config.Config
	log *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the yaml config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides log.level from the config")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "hide progress bars")

	rootCmd.AddCommand(importOsmCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(nearestNodesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(resampleCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(serveCmd)
}

func setup() error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log, err = logger.New(cfg.Log.Level, cfg.Log.JSON)
	return err
}

func runPathOptions() runpath.Options {
	opts := runpath.DefaultOptions()
	opts.Preprocess = geo.PreprocessOptions{
		MaxSpeed:   cfg.Matching.MaxSpeed,
		Reference:  geo.ParseSpikeReference(cfg.Matching.SpikeReference),
		AlignTimes: cfg.Matching.AlignTimes,
	}
	opts.Logger = log
	return opts
}
