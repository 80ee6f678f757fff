package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 0.05, cfg.GateConfig().MinESSRatio)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
db_path: /tmp/beliefs.db
seed: 99
prior:
  mean: 2.5
  std: 0.5
  count: 100
model:
  kind: remote
  sigma: 0.25
  timeout: 500ms
gate:
  max_step_kl: 1.5
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/beliefs.db", cfg.DBPath)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, 100, cfg.Prior.Count)
	assert.Equal(t, "remote", cfg.Model.Kind)
	assert.Equal(t, 500*time.Millisecond, cfg.Model.Timeout)
	assert.Equal(t, 1.5, cfg.GateConfig().MaxStepKL)
	// untouched keys keep defaults
	assert.Equal(t, 0.05, cfg.Gate.MinESSRatio)
	assert.Equal(t, 1.0, cfg.Model.Gain)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BELIEF_DB", "/env/beliefs.db")
	t.Setenv("CODEC_ADDR", "model:9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/beliefs.db", cfg.DBPath)
	assert.Equal(t, "model:9000", cfg.CodecAddr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeFile(t, "model:\n  kind: lstm\n"))
	assert.ErrorContains(t, err, "unknown model kind")

	_, err = Load(writeFile(t, "prior:\n  count: 1\n"))
	assert.ErrorContains(t, err, "at least 2 particles")

	_, err = Load(writeFile(t, "model:\n  kind: remote\n  timeout: 0s\n"))
	assert.ErrorContains(t, err, "timeout must be positive")

	_, err = Load(writeFile(t, "model:\n  kind: remote\n  timeout: 500ms\n"))
	assert.NoError(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
