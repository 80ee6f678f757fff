package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/eval"
	"github.com/danielpatrickdp/belief-controller/internal/gate"
	"github.com/danielpatrickdp/belief-controller/internal/model"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/danielpatrickdp/belief-controller/internal/update"
	"github.com/danielpatrickdp/belief-controller/internal/value"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Prior           FixturePrior            `json:"prior"`
	Model           FixtureModel            `json:"model"`
	Config          FixtureConfig           `json:"config"`
	Steps           []FixtureStep           `json:"steps"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixturePrior is either an explicit particle list or a Gaussian draw.
// Explicit particles win when present.
type FixturePrior struct {
	VersionID  string    `json:"version_id"`
	Particles  []float64 `json:"particles,omitempty"`
	LogWeights []float64 `json:"log_weights,omitempty"`
	Mean       float64   `json:"mean"`
	Std        float64   `json:"std"`
	Count      int       `json:"count"`
	Seed       uint64    `json:"seed"`
}

// FixtureModel holds the Gaussian observation model parameters.
type FixtureModel struct {
	Gain  float64 `json:"gain"`
	Sigma float64 `json:"sigma"`
}

// FixtureStep mirrors update.Step with JSON tags.
type FixtureStep struct {
	TurnID      string  `json:"turn_id"`
	Control     float64 `json:"control"`
	Disturbance float64 `json:"disturbance"`
}

// FixtureExpectedResult captures the expected action per step.
type FixtureExpectedResult struct {
	TurnID string `json:"turn_id"`
	Action string `json:"action"`
}

// FixtureConfig bundles all sub-configs for a replay run.
type FixtureConfig struct {
	UpdateConfig FixtureUpdateConfig `json:"update_config"`
	GateConfig   FixtureGateConfig   `json:"gate_config"`
	EvalConfig   FixtureEvalConfig   `json:"eval_config"`
}

// FixtureUpdateConfig mirrors update.UpdateConfig with JSON tags.
type FixtureUpdateConfig struct {
	NoOpTolerance float64 `json:"no_op_tolerance"`
}

// FixtureGateConfig mirrors gate.GateConfig with JSON tags.
type FixtureGateConfig struct {
	MinESSRatio float64 `json:"min_ess_ratio"`
	MaxStepKL   float64 `json:"max_step_kl"`
	MinVariance float64 `json:"min_variance"`
}

// FixtureEvalConfig mirrors eval.EvalConfig with JSON tags.
type FixtureEvalConfig struct {
	MaxTerminalValue float64 `json:"max_terminal_value"`
	MaxAbsMean       float64 `json:"max_abs_mean"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToBeliefRecord builds the starting belief record.
func (p *FixturePrior) ToBeliefRecord() (state.BeliefRecord, error) {
	var b *belief.ParticleBelief
	if len(p.Particles) > 0 {
		b = belief.FromValues(p.Particles)
		if p.LogWeights != nil {
			if len(p.LogWeights) != len(p.Particles) {
				return state.BeliefRecord{}, fmt.Errorf("fixture prior: %w", belief.ErrDimensionMismatch)
			}
			b.SetLogWeights(p.LogWeights)
		}
	} else {
		if p.Count < 2 || p.Std <= 0 {
			return state.BeliefRecord{}, fmt.Errorf("fixture prior: count %d, std %v: need count >= 2 and std > 0", p.Count, p.Std)
		}
		b = model.GaussianPrior(p.Mean, p.Std, p.Count, p.Seed)
	}
	versionID := p.VersionID
	if versionID == "" {
		versionID = "prior"
	}
	return state.BeliefRecord{VersionID: versionID, Belief: b}, nil
}

// ToModel converts the fixture model to a Gaussian observation model.
func (m FixtureModel) ToModel() model.Gaussian {
	return model.Gaussian{Gain: m.Gain, Sigma: m.Sigma}
}

// ToStep converts a FixtureStep to a domain Step.
func (fs *FixtureStep) ToStep() update.Step {
	return update.Step{
		TurnID:      fs.TurnID,
		Control:     fs.Control,
		Disturbance: fs.Disturbance,
	}
}

// ToReplayConfig converts a FixtureConfig to a domain ReplayConfig.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	return ReplayConfig{
		UpdateConfig: update.UpdateConfig{
			NoOpTolerance: fc.UpdateConfig.NoOpTolerance,
		},
		GateConfig: gate.GateConfig{
			MinESSRatio: fc.GateConfig.MinESSRatio,
			MaxStepKL:   fc.GateConfig.MaxStepKL,
			MinVariance: fc.GateConfig.MinVariance,
		},
		EvalConfig: eval.EvalConfig{
			MaxTerminalValue: fc.EvalConfig.MaxTerminalValue,
			MaxAbsMean:       fc.EvalConfig.MaxAbsMean,
		},
	}
}

// Run replays the fixture steps from its prior. newValue builds the value
// function from the prior belief.
func (f *Fixture) Run(newValue func(prior *belief.ParticleBelief) value.ValueFunction) ([]ReplayResult, state.BeliefRecord, error) {
	start, err := f.Prior.ToBeliefRecord()
	if err != nil {
		return nil, state.BeliefRecord{}, err
	}
	steps := make([]update.Step, len(f.Steps))
	for i := range f.Steps {
		steps[i] = f.Steps[i].ToStep()
	}
	return Replay(start, steps, f.Model.ToModel(), newValue(start.Belief), f.Config.ToReplayConfig())
}

// #endregion fixture-loader
