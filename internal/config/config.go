package config

import (
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/belief-controller/internal/eval"
	"github.com/danielpatrickdp/belief-controller/internal/gate"
	"github.com/danielpatrickdp/belief-controller/internal/update"
	"gopkg.in/yaml.v3"
)

// #region config-types
// Config is the top-level controller configuration, loaded from YAML with
// environment overrides.
type Config struct {
	DBPath    string        `yaml:"db_path"`
	CodecAddr string        `yaml:"codec_addr"`
	Seed      uint64        `yaml:"seed"`
	Prior     PriorConfig   `yaml:"prior"`
	Model     ModelConfig   `yaml:"model"`
	Update    UpdateConfig  `yaml:"update"`
	Gate      GateConfig    `yaml:"gate"`
	Eval      EvalConfig    `yaml:"eval"`
	Log       LogConfig     `yaml:"log"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

// PriorConfig describes the Gaussian particle cloud used to seed a new store.
type PriorConfig struct {
	Mean  float64 `yaml:"mean"`
	Std   float64 `yaml:"std"`
	Count int     `yaml:"count"`
}

// ModelConfig selects the observation model.
type ModelConfig struct {
	Kind    string        `yaml:"kind"` // "gaussian" | "remote"
	Gain    float64       `yaml:"gain"`
	Sigma   float64       `yaml:"sigma"`
	Timeout time.Duration `yaml:"timeout"` // per-particle RPC timeout for "remote"
}

// UpdateConfig mirrors update.UpdateConfig with YAML tags.
type UpdateConfig struct {
	NoOpTolerance float64 `yaml:"no_op_tolerance"`
}

// GateConfig mirrors gate.GateConfig with YAML tags.
type GateConfig struct {
	MinESSRatio float64 `yaml:"min_ess_ratio"`
	MaxStepKL   float64 `yaml:"max_step_kl"`
	MinVariance float64 `yaml:"min_variance"`
}

// EvalConfig mirrors eval.EvalConfig with YAML tags.
type EvalConfig struct {
	MaxTerminalValue float64 `yaml:"max_terminal_value"`
	MaxAbsMean       float64 `yaml:"max_abs_mean"`
}

// LogConfig controls process logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"
}

// MetricsConfig controls the prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// #endregion config-types

// #region defaults
// Default returns the configuration used when no file is given.
func Default() Config {
	u := update.DefaultUpdateConfig()
	g := gate.DefaultGateConfig()
	e := eval.DefaultEvalConfig()
	return Config{
		DBPath:    "belief_state.db",
		CodecAddr: "localhost:50051",
		Seed:      1,
		Prior:     PriorConfig{Mean: 0, Std: 1, Count: 500},
		Model:     ModelConfig{Kind: "gaussian", Gain: 1, Sigma: 1, Timeout: 2 * time.Second},
		Update:    UpdateConfig{NoOpTolerance: u.NoOpTolerance},
		Gate:      GateConfig{MinESSRatio: g.MinESSRatio, MaxStepKL: g.MaxStepKL, MinVariance: g.MinVariance},
		Eval:      EvalConfig{MaxTerminalValue: e.MaxTerminalValue, MaxAbsMean: e.MaxAbsMean},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// #endregion defaults

// #region load
// Load reads path over the defaults (an empty path uses defaults only), then
// applies BELIEF_DB and CODEC_ADDR overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.DBPath = envOr("BELIEF_DB", cfg.DBPath)
	cfg.CodecAddr = envOr("CODEC_ADDR", cfg.CodecAddr)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	switch c.Model.Kind {
	case "gaussian", "remote":
	default:
		return fmt.Errorf("config: unknown model kind %q", c.Model.Kind)
	}
	if c.Model.Kind == "remote" && c.Model.Timeout <= 0 {
		return fmt.Errorf("config: remote model timeout must be positive, got %v", c.Model.Timeout)
	}
	if c.Model.Sigma <= 0 {
		return fmt.Errorf("config: model sigma must be positive, got %v", c.Model.Sigma)
	}
	if c.Prior.Count < 2 {
		return fmt.Errorf("config: prior needs at least 2 particles, got %d", c.Prior.Count)
	}
	if c.Prior.Std <= 0 {
		return fmt.Errorf("config: prior std must be positive, got %v", c.Prior.Std)
	}
	return nil
}

// #endregion load

// #region converters
// UpdateConfig converts to the update package's config.
func (c Config) UpdateConfig() update.UpdateConfig {
	return update.UpdateConfig{NoOpTolerance: c.Update.NoOpTolerance}
}

// GateConfig converts to the gate package's config.
func (c Config) GateConfig() gate.GateConfig {
	return gate.GateConfig{
		MinESSRatio: c.Gate.MinESSRatio,
		MaxStepKL:   c.Gate.MaxStepKL,
		MinVariance: c.Gate.MinVariance,
	}
}

// EvalConfig converts to the eval package's config.
func (c Config) EvalConfig() eval.EvalConfig {
	return eval.EvalConfig{
		MaxTerminalValue: c.Eval.MaxTerminalValue,
		MaxAbsMean:       c.Eval.MaxAbsMean,
	}
}

// #endregion converters

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
