package orchestrator

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/logging"
	"github.com/danielpatrickdp/belief-controller/internal/metrics"
	"github.com/danielpatrickdp/belief-controller/internal/model"
	"github.com/danielpatrickdp/belief-controller/internal/replay"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/danielpatrickdp/belief-controller/internal/update"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// helper: store seeded with a five-point grid prior.
func newTestStore(t *testing.T) (*state.Store, state.BeliefRecord) {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	prior, err := store.CreateInitialBelief(belief.FromValues([]float64{-2, -1, 0, 1, 2}))
	if err != nil {
		t.Fatalf("CreateInitialBelief: %v", err)
	}
	return store, prior
}

// helper: count provenance rows and return the last one's decision and step JSON.
func lastProvenance(t *testing.T, store *state.Store) (count int, versionID, decision, stepJSON string) {
	t.Helper()
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM provenance_log`).Scan(&count); err != nil {
		t.Fatalf("count provenance: %v", err)
	}
	err := store.DB().QueryRow(
		`SELECT version_id, decision, step_json FROM provenance_log ORDER BY id DESC LIMIT 1`,
	).Scan(&versionID, &decision, &stepJSON)
	if err != nil {
		t.Fatalf("read provenance: %v", err)
	}
	return count, versionID, decision, stepJSON
}

var gauss = model.Gaussian{Gain: 1, Sigma: 2}

func TestTurn_CommitAdvancesActive(t *testing.T) {
	store, prior := newTestStore(t)
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	o, err := NewOrchestrator(store, StaticModel(gauss), nil, replay.DefaultReplayConfig(), WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	out, err := o.Turn(context.Background(), update.Step{TurnID: "turn-1", Disturbance: 0.3})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if out.Result.Action != "commit" {
		t.Fatalf("expected commit, got %s (%s)", out.Result.Action, out.Result.Reason)
	}
	if out.ActiveVersionID == prior.VersionID {
		t.Error("expected active version to advance")
	}

	current, err := store.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current.VersionID != out.ActiveVersionID || current.ParentID != prior.VersionID {
		t.Errorf("unexpected active record: %s (parent %s)", current.VersionID, current.ParentID)
	}

	_, versionID, decision, stepJSON := lastProvenance(t, store)
	if versionID != out.ActiveVersionID || decision != "commit" {
		t.Errorf("unexpected provenance: version=%s decision=%s", versionID, decision)
	}
	var sr logging.StepRecord
	if err := json.Unmarshal([]byte(stepJSON), &sr); err != nil {
		t.Fatalf("unmarshal step json: %v", err)
	}
	if sr.TurnID != "turn-1" || sr.GateAction != "commit" || sr.TerminalValue == nil || sr.EvalPassed == nil || !*sr.EvalPassed {
		t.Errorf("incomplete step record: %+v", sr)
	}

	if got := testutil.ToFloat64(rec.Decisions.WithLabelValues("commit")); got != 1 {
		t.Errorf("expected 1 commit counted, got %v", got)
	}
	if got := testutil.ToFloat64(rec.Particles); got != 5 {
		t.Errorf("expected particles gauge 5, got %v", got)
	}
}

func TestTurn_GateRejectLogsAgainstActive(t *testing.T) {
	store, prior := newTestStore(t)
	config := replay.DefaultReplayConfig()
	config.GateConfig.MinESSRatio = 1.01

	o, err := NewOrchestrator(store, StaticModel(gauss), nil, config)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	out, err := o.Turn(context.Background(), update.Step{TurnID: "turn-1", Disturbance: 0.3})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if out.Result.Action != "gate_reject" {
		t.Fatalf("expected gate_reject, got %s", out.Result.Action)
	}
	if out.ActiveVersionID != prior.VersionID || out.LoggedVersionID != prior.VersionID {
		t.Errorf("expected versions to stay at prior, got %s/%s", out.ActiveVersionID, out.LoggedVersionID)
	}

	versions, err := store.ListVersions(10)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("expected rejected proposal not to be stored, got %d versions", len(versions))
	}
	_, versionID, decision, _ := lastProvenance(t, store)
	if versionID != prior.VersionID || decision != "gate_reject" {
		t.Errorf("unexpected provenance: version=%s decision=%s", versionID, decision)
	}
}

func TestTurn_EvalRollbackKeepsProposal(t *testing.T) {
	store, prior := newTestStore(t)
	config := replay.DefaultReplayConfig()
	config.EvalConfig.MaxTerminalValue = 0

	o, err := NewOrchestrator(store, StaticModel(gauss), nil, config)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	out, err := o.Turn(context.Background(), update.Step{TurnID: "turn-1", Disturbance: 0.3})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if out.Result.Action != "eval_rollback" {
		t.Fatalf("expected eval_rollback, got %s", out.Result.Action)
	}

	current, err := store.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current.VersionID != prior.VersionID {
		t.Errorf("expected active to roll back to prior, got %s", current.VersionID)
	}
	if _, err := store.GetVersion(out.LoggedVersionID); err != nil {
		t.Errorf("expected rolled-back proposal to be stored: %v", err)
	}
	_, versionID, decision, _ := lastProvenance(t, store)
	if versionID != out.Result.Proposed.VersionID || decision != "eval_rollback" {
		t.Errorf("unexpected provenance: version=%s decision=%s", versionID, decision)
	}
}

func TestTurn_EvalRollbackStoreFailureKeepsParent(t *testing.T) {
	store, prior := newTestStore(t)
	config := replay.DefaultReplayConfig()
	config.EvalConfig.MaxTerminalValue = 0

	// Fail every version insert so the rejected proposal cannot be stored.
	_, err := store.DB().Exec(`CREATE TRIGGER fail_insert BEFORE INSERT ON belief_versions
		BEGIN SELECT RAISE(ABORT, 'insert disabled'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	o, err := NewOrchestrator(store, StaticModel(gauss), nil, config)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	if _, err := o.Turn(context.Background(), update.Step{TurnID: "turn-1", Disturbance: 0.3}); err == nil {
		t.Fatal("expected store error")
	}

	current, err := store.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if current.VersionID != prior.VersionID {
		t.Errorf("expected active to stay at prior, got %s", current.VersionID)
	}
}

func TestTurn_RetriesUpdateError(t *testing.T) {
	store, _ := newTestStore(t)
	calls := 0
	factory := func(context.Context) belief.Model {
		calls++
		if calls == 1 {
			return belief.ModelFunc(func(_, _, _ float64) float64 { return math.NaN() })
		}
		return gauss
	}

	o, err := NewOrchestrator(store, factory, nil, replay.DefaultReplayConfig())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	out, err := o.Turn(context.Background(), update.Step{TurnID: "turn-1", Disturbance: 0.3})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if out.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", out.Attempts)
	}
	if out.Result.Action != "commit" {
		t.Errorf("expected commit after retry, got %s", out.Result.Action)
	}
}

func TestTurn_GivesUpAfterMaxRetries(t *testing.T) {
	store, prior := newTestStore(t)
	broken := StaticModel(belief.ModelFunc(func(_, _, _ float64) float64 { return math.NaN() }))

	o, err := NewOrchestrator(store, broken, nil, replay.DefaultReplayConfig(), WithMaxRetries(1))
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	out, err := o.Turn(context.Background(), update.Step{TurnID: "turn-1"})
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if out.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", out.Attempts)
	}
	if out.Result.Action != "update_error" {
		t.Errorf("expected update_error, got %s", out.Result.Action)
	}
	count, versionID, decision, _ := lastProvenance(t, store)
	if count != 1 || versionID != prior.VersionID || decision != "update_error" {
		t.Errorf("unexpected provenance: count=%d version=%s decision=%s", count, versionID, decision)
	}
}

func TestShouldRetry(t *testing.T) {
	if shouldRetry("commit", 1, 2) {
		t.Error("commit should not retry")
	}
	if !shouldRetry("update_error", 2, 2) {
		t.Error("second attempt should still retry")
	}
	if shouldRetry("update_error", 3, 2) {
		t.Error("third attempt should not retry")
	}
}
