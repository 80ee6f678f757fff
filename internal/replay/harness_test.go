package replay

import (
	"errors"
	"math"
	"testing"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/model"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/danielpatrickdp/belief-controller/internal/update"
	"github.com/danielpatrickdp/belief-controller/internal/value"
)

// helper: equally weighted grid belief with a version ID.
func gridState(versionID string) state.BeliefRecord {
	return state.BeliefRecord{
		VersionID: versionID,
		Belief:    belief.FromValues([]float64{-2, -1, 0, 1, 2}),
	}
}

// helper: step with a modest observation near the origin.
func nearStep(turnID string) update.Step {
	return update.Step{TurnID: turnID, Control: 0, Disturbance: 0.3}
}

// spyValue records what Train receives.
type spyValue struct {
	*value.Terminal
	trained []*belief.ParticleBelief
	costs   []float64
	err     error
}

func (s *spyValue) Train(beliefs []*belief.ParticleBelief, costs []float64) error {
	s.trained = beliefs
	s.costs = costs
	return s.err
}

var gauss = model.Gaussian{Gain: 1, Sigma: 2}

// 1. Full commit path: modest observation → action="commit", state advances.
func TestReplay_FullCommitPath(t *testing.T) {
	start := gridState("v0")
	vf := value.NewTerminal(start.Belief)

	results, final, err := Replay(start, []update.Step{nearStep("turn-1")}, gauss, vf, DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Action != "commit" {
		t.Errorf("expected action=commit, got %s (%s)", r.Action, r.Reason)
	}
	if r.FinalVersionID == start.VersionID {
		t.Error("expected state to advance (new VersionID)")
	}
	if final.ParentID != start.VersionID {
		t.Errorf("expected parent %s, got %s", start.VersionID, final.ParentID)
	}
	if r.GateDecision == nil || r.EvalResult == nil {
		t.Fatal("expected GateDecision and EvalResult to be populated")
	}
	if !r.EvalResult.Passed {
		t.Error("expected EvalResult.Passed=true")
	}
}

// 2. Gate rejection: ESS floor above any reachable ratio → gate_reject, state unchanged.
func TestReplay_GateRejection(t *testing.T) {
	start := gridState("v0")
	config := DefaultReplayConfig()
	config.GateConfig.MinESSRatio = 1.01

	results, final, err := Replay(start, []update.Step{nearStep("turn-1")}, gauss, value.NewTerminal(start.Belief), config)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	r := results[0]
	if r.Action != "gate_reject" {
		t.Errorf("expected action=gate_reject, got %s", r.Action)
	}
	if r.EvalResult != nil {
		t.Error("expected EvalResult to be nil on gate reject")
	}
	if r.Proposed == nil {
		t.Error("expected Proposed to be kept for provenance")
	}
	if final.VersionID != "v0" || r.FinalVersionID != "v0" {
		t.Errorf("expected state to stay at v0, got %s", final.VersionID)
	}
}

// 3. Eval rollback: terminal bound of zero fails any moved belief.
func TestReplay_EvalRollback(t *testing.T) {
	start := gridState("v0")
	config := DefaultReplayConfig()
	config.EvalConfig.MaxTerminalValue = 0

	results, final, err := Replay(start, []update.Step{nearStep("turn-1")}, gauss, value.NewTerminal(start.Belief), config)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	r := results[0]
	if r.Action != "eval_rollback" {
		t.Errorf("expected action=eval_rollback, got %s", r.Action)
	}
	if r.EvalResult == nil || r.EvalResult.Passed {
		t.Error("expected a failed EvalResult")
	}
	if final.VersionID != "v0" {
		t.Errorf("expected state to stay at v0, got %s", final.VersionID)
	}
}

// 4. No-op: flat likelihood leaves weights unchanged.
func TestReplay_NoOp(t *testing.T) {
	start := gridState("v0")

	results, final, err := Replay(start, []update.Step{nearStep("turn-1")}, model.Flat{}, value.NewTerminal(start.Belief), DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	r := results[0]
	if r.Action != "no_op" {
		t.Errorf("expected action=no_op, got %s", r.Action)
	}
	if r.GateDecision != nil || r.Proposed != nil {
		t.Error("expected no gate decision or proposal on no_op")
	}
	if final.VersionID != "v0" {
		t.Errorf("expected state to stay at v0, got %s", final.VersionID)
	}
}

// 5. Update error: NaN likelihood surfaces as update_error, later steps still run.
func TestReplay_UpdateError(t *testing.T) {
	start := gridState("v0")
	calls := 0
	flaky := belief.ModelFunc(func(p, u, d float64) float64 {
		calls++
		if calls <= 5 {
			return math.NaN()
		}
		return gauss.LogLikelihood(p, u, d)
	})

	steps := []update.Step{nearStep("turn-1"), nearStep("turn-2")}
	results, final, err := Replay(start, steps, flaky, value.NewTerminal(start.Belief), DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Action != "update_error" {
		t.Errorf("expected turn-1 update_error, got %s", results[0].Action)
	}
	if results[0].FinalVersionID != "v0" {
		t.Errorf("expected v0 after update_error, got %s", results[0].FinalVersionID)
	}
	if results[1].Action != "commit" {
		t.Errorf("expected turn-2 commit, got %s (%s)", results[1].Action, results[1].Reason)
	}
	if final.ParentID != "v0" {
		t.Errorf("expected final parent v0, got %s", final.ParentID)
	}
}

// 6. Input state is never mutated.
func TestReplay_StartUnchanged(t *testing.T) {
	start := gridState("v0")
	before := start.Belief.LogWeights()

	_, _, err := Replay(start, []update.Step{nearStep("turn-1"), nearStep("turn-2")}, gauss, value.NewTerminal(start.Belief), DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	after := start.Belief.LogWeights()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("start belief mutated at %d: %v -> %v", i, before[i], after[i])
		}
	}
}

// 7. Train receives exactly the committed beliefs with their terminal values.
func TestReplay_TrainsOnCommits(t *testing.T) {
	start := gridState("v0")
	spy := &spyValue{Terminal: value.NewTerminal(start.Belief)}
	steps := []update.Step{nearStep("turn-1"), {TurnID: "turn-2"}, nearStep("turn-3")}
	config := DefaultReplayConfig()

	results, _, err := Replay(start, steps, gauss, spy, config)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	commits := Summarize(results, start).Commits
	if len(spy.trained) != commits || len(spy.costs) != commits {
		t.Fatalf("expected %d training pairs, got %d/%d", commits, len(spy.trained), len(spy.costs))
	}
	j := 0
	for _, r := range results {
		if r.Action != "commit" {
			continue
		}
		if spy.costs[j] != r.EvalResult.TerminalValue {
			t.Errorf("cost %d: expected %f, got %f", j, r.EvalResult.TerminalValue, spy.costs[j])
		}
		j++
	}
}

// 8. Train failure is returned with the results intact.
func TestReplay_TrainError(t *testing.T) {
	start := gridState("v0")
	spy := &spyValue{Terminal: value.NewTerminal(start.Belief), err: errors.New("fit failed")}

	results, _, err := Replay(start, []update.Step{nearStep("turn-1")}, gauss, spy, DefaultReplayConfig())
	if err == nil {
		t.Fatal("expected train error")
	}
	if len(results) != 1 {
		t.Errorf("expected results to be returned, got %d", len(results))
	}
}

// 9. Summarize counts every action kind.
func TestSummarize(t *testing.T) {
	results := []ReplayResult{
		{Action: "commit"}, {Action: "commit"}, {Action: "gate_reject"},
		{Action: "eval_rollback"}, {Action: "no_op"}, {Action: "update_error"},
	}
	final := gridState("v9")
	s := Summarize(results, final)

	if s.TotalTurns != 6 {
		t.Errorf("expected 6 turns, got %d", s.TotalTurns)
	}
	if s.Commits != 2 || s.GateRejects != 1 || s.EvalRollbacks != 1 || s.NoOps != 1 || s.UpdateErrors != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.FinalState.VersionID != "v9" {
		t.Errorf("expected final v9, got %s", s.FinalState.VersionID)
	}
}
