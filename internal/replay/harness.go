package replay

import (
	"fmt"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/eval"
	"github.com/danielpatrickdp/belief-controller/internal/gate"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/danielpatrickdp/belief-controller/internal/update"
	"github.com/danielpatrickdp/belief-controller/internal/value"
)

// #region types
// ReplayConfig bundles update, gate, and eval configs for a replay run.
type ReplayConfig struct {
	UpdateConfig update.UpdateConfig
	GateConfig   gate.GateConfig
	EvalConfig   eval.EvalConfig
}

// DefaultReplayConfig returns sensible defaults for all three pipeline stages.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		UpdateConfig: update.DefaultUpdateConfig(),
		GateConfig:   gate.DefaultGateConfig(),
		EvalConfig:   eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures the outcome of running one step through the full pipeline.
type ReplayResult struct {
	TurnID string
	Action string // "commit" | "gate_reject" | "eval_rollback" | "no_op" | "update_error"
	Reason string

	// Update stage
	UpdateDecision update.Decision
	UpdateMetrics  update.Metrics

	// Proposed successor (nil on update_error or no_op)
	Proposed *state.BeliefRecord

	// Gate stage (nil if update was no_op or failed)
	GateDecision *gate.GateDecision

	// Eval stage (nil if gate rejected or update was no_op)
	EvalResult *eval.EvalResult

	// Active version after this step (equals the previous one unless committed)
	FinalVersionID string
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns    int
	Commits       int
	GateRejects   int
	EvalRollbacks int
	NoOps         int
	UpdateErrors  int
	FinalState    state.BeliefRecord
}

// #endregion types

// #region pipeline
// Pipeline runs update, gate, and eval for one step at a time.
type Pipeline struct {
	model  belief.Model
	config update.UpdateConfig
	gate   *gate.Gate
	eval   *eval.EvalHarness
}

// NewPipeline wires the stages for model and value function vf.
func NewPipeline(m belief.Model, vf value.ValueFunction, config ReplayConfig) *Pipeline {
	return &Pipeline{
		model:  m,
		config: config.UpdateConfig,
		gate:   gate.NewGate(config.GateConfig),
		eval:   eval.NewEvalHarness(config.EvalConfig, vf),
	}
}

// Step runs one step against current and returns the result and the active
// belief afterwards. current is never mutated.
func (p *Pipeline) Step(current state.BeliefRecord, step update.Step) (ReplayResult, state.BeliefRecord) {
	// 1. Update
	updateResult, err := update.Update(current, step, p.model, p.config)
	if err != nil {
		return ReplayResult{
			TurnID:         step.TurnID,
			Action:         "update_error",
			Reason:         err.Error(),
			FinalVersionID: current.VersionID,
		}, current
	}

	base := ReplayResult{
		TurnID:         step.TurnID,
		UpdateDecision: updateResult.Decision,
		UpdateMetrics:  updateResult.Metrics,
		FinalVersionID: current.VersionID,
	}

	// 2. No-op check
	if updateResult.Decision.Action == "no_op" {
		base.Action = "no_op"
		base.Reason = updateResult.Decision.Reason
		return base, current
	}
	proposed := updateResult.NewState
	base.Proposed = &proposed

	// 3. Gate
	gateDecision := p.gate.Evaluate(updateResult.Metrics)
	base.GateDecision = &gateDecision
	if gateDecision.Action == "reject" {
		base.Action = "gate_reject"
		base.Reason = gateDecision.Reason
		return base, current
	}

	// 4. Eval
	evalResult := p.eval.Run(proposed)
	base.EvalResult = &evalResult
	if !evalResult.Passed {
		base.Action = "eval_rollback"
		base.Reason = evalResult.Reason
		return base, current
	}

	// 5. Commit
	base.Action = "commit"
	base.Reason = gateDecision.Reason
	base.FinalVersionID = proposed.VersionID
	return base, proposed
}

// #endregion pipeline

// #region replay
// Replay iterates through steps, applying the full pipeline per step:
// update → gate → eval → commit/reject. Operates entirely in-memory.
// Afterwards vf is trained on the committed beliefs and their terminal values.
func Replay(start state.BeliefRecord, steps []update.Step, m belief.Model, vf value.ValueFunction, config ReplayConfig) ([]ReplayResult, state.BeliefRecord, error) {
	p := NewPipeline(m, vf, config)
	current := start
	results := make([]ReplayResult, 0, len(steps))

	var trained []*belief.ParticleBelief
	var costs []float64
	for _, step := range steps {
		var r ReplayResult
		r, current = p.Step(current, step)
		results = append(results, r)
		if r.Action == "commit" {
			trained = append(trained, current.Belief)
			costs = append(costs, r.EvalResult.TerminalValue)
		}
	}

	if err := vf.Train(trained, costs); err != nil {
		return results, current, fmt.Errorf("train value function: %w", err)
	}
	return results, current, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, finalState state.BeliefRecord) ReplaySummary {
	s := ReplaySummary{
		TotalTurns: len(results),
		FinalState: finalState,
	}
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
		case "gate_reject":
			s.GateRejects++
		case "eval_rollback":
			s.EvalRollbacks++
		case "no_op":
			s.NoOps++
		case "update_error":
			s.UpdateErrors++
		}
	}
	return s
}

// #endregion replay
