package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lintang/runpathx/pkg/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runpathx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
graph:
  path: amsterdam.graphml
  repair_max_gap_m: 20
matching:
  spike_reference: last_kept
store:
  dir: /tmp/runs
log:
  level: debug
  json: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "amsterdam.graphml", cfg.Graph.Path)
	assert.Equal(t, 20.0, cfg.Graph.RepairMaxGapM)
	assert.True(t, cfg.Graph.RepairOnLoad)
	assert.Equal(t, "last_kept", cfg.Matching.SpikeReference)
	assert.Equal(t, 7.0, cfg.Matching.MaxSpeed)
	assert.Equal(t, "/tmp/runs", cfg.Store.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RUNPATHX_GRAPH_PATH", "utrecht.graphml")
	t.Setenv("RUNPATHX_MATCHING_MAX_SPEED", "5.5")
	t.Setenv("RUNPATHX_GRAPH_REPAIR_ON_LOAD", "false")
	t.Setenv("RUNPATHX_MATCHING_WORKERS", "8")
	t.Setenv("RUNPATHX_SERVER_CORS_ORIGINS", "http://a,http://b")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "utrecht.graphml", cfg.Graph.Path)
	assert.Equal(t, 5.5, cfg.Matching.MaxSpeed)
	assert.False(t, cfg.Graph.RepairOnLoad)
	assert.Equal(t, 8, cfg.Matching.Workers)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CorsOrigins)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("graph: [1, 2"), 0o644))
	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("matching:\n  spike_reference: sideways\n"), 0o644))

	tests := map[string]string{
		"missing file": filepath.Join(dir, "nope.yaml"),
		"bad yaml":     bad,
		"invalid":      invalid,
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path)
			assert.True(t, errors.Is(err, server.ErrInput), "got %v", err)
		})
	}

	t.Run("bad env number", func(t *testing.T) {
		t.Setenv("RUNPATHX_MATCHING_MAX_SPEED", "fast")
		_, err := Load("")
		assert.True(t, errors.Is(err, server.ErrInput))
	})
}
