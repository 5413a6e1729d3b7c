package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"lintang/runpathx/pkg/server"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "RUNPATHX_"

type Config struct {
	Graph    GraphConfig    `yaml:"graph"`
	Matching MatchingConfig `yaml:"matching"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type GraphConfig struct {
	// GraphML file or .osm.pbf extract
	Path          string  `yaml:"path"`
	CachePath     string  `yaml:"cache_path"`
	RepairOnLoad  bool    `yaml:"repair_on_load"`
	RepairMaxGapM float64 `yaml:"repair_max_gap_m" validate:"gt=0"`
}

type MatchingConfig struct {
	MaxSpeed       float64 `yaml:"max_speed" validate:"gt=0"`
	SpikeReference string  `yaml:"spike_reference" validate:"oneof=previous last_kept"`
	AlignTimes     bool    `yaml:"align_times"`
	ResampleM      float64 `yaml:"resample_spacing_m" validate:"gt=0"`
	Workers        int     `yaml:"workers" validate:"gte=1,lte=64"`
}

type StoreConfig struct {
	Dir            string  `yaml:"dir" validate:"required"`
	NearbyRadiusKm float64 `yaml:"nearby_radius_km" validate:"gt=0,lte=50"`
}

type ServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr" validate:"required,hostname_port"`
	CorsOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

func DefaultConfig() Config {
	return Config{
		Graph: GraphConfig{
			RepairOnLoad:  true,
			RepairMaxGapM: 30,
		},
		Matching: MatchingConfig{
			MaxSpeed:       7.0,
			SpikeReference: "previous",
			ResampleM:      5.0,
			Workers:        4,
		},
		Store: StoreConfig{
			Dir:            "runpathx_db",
			NearbyRadiusKm: 1.0,
		},
		Server: ServerConfig{
			ListenAddr:  "localhost:5000",
			CorsOrigins: []string{"https://*", "http://*"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads .env (if present), then the yaml file at path (if not empty), then RUNPATHX_* environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, server.WrapErrorf(err, server.ErrInput, "read .env")
	}

	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, server.WrapErrorf(err, server.ErrInput, "read config %s", path)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, server.WrapErrorf(err, server.ErrInput, "parse config %s", path)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"GRAPH_PATH":               &c.Graph.Path,
		"GRAPH_CACHE_PATH":         &c.Graph.CachePath,
		"MATCHING_SPIKE_REFERENCE": &c.Matching.SpikeReference,
		"STORE_DIR":                &c.Store.Dir,
		"SERVER_LISTEN_ADDR":       &c.Server.ListenAddr,
		"LOG_LEVEL":                &c.Log.Level,
	}
	floats := map[string]*float64{
		"GRAPH_REPAIR_MAX_GAP_M":      &c.Graph.RepairMaxGapM,
		"MATCHING_MAX_SPEED":          &c.Matching.MaxSpeed,
		"MATCHING_RESAMPLE_SPACING_M": &c.Matching.ResampleM,
		"STORE_NEARBY_RADIUS_KM":      &c.Store.NearbyRadiusKm,
	}
	bools := map[string]*bool{
		"GRAPH_REPAIR_ON_LOAD": &c.Graph.RepairOnLoad,
		"LOG_JSON":             &c.Log.JSON,
		"MATCHING_ALIGN_TIMES": &c.Matching.AlignTimes,
	}

	for name, dst := range strs {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	for name, dst := range floats {
		if v, ok := lookup(envPrefix + name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return server.WrapErrorf(err, server.ErrInput, "%s%s", envPrefix, name)
			}
			*dst = f
		}
	}
	for name, dst := range bools {
		if v, ok := lookup(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return server.WrapErrorf(err, server.ErrInput, "%s%s", envPrefix, name)
			}
			*dst = b
		}
	}
	if v, ok := lookup(envPrefix + "MATCHING_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return server.WrapErrorf(err, server.ErrInput, "%sMATCHING_WORKERS", envPrefix)
		}
		c.Matching.Workers = n
	}
	if v, ok := lookup(envPrefix + "SERVER_CORS_ORIGINS"); ok {
		c.Server.CorsOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
			}
			return server.WrapErrorf(err, server.ErrInput, "invalid config: %s", strings.Join(msgs, ", "))
		}
		return server.WrapErrorf(err, server.ErrInput, "invalid config")
	}
	return nil
}
