package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/belief-controller/internal/logging"
	"github.com/danielpatrickdp/belief-controller/internal/metrics"
	"github.com/danielpatrickdp/belief-controller/internal/replay"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/danielpatrickdp/belief-controller/internal/update"
	"github.com/danielpatrickdp/belief-controller/internal/value"
)

// #endregion

// #region orchestrator-struct

// Orchestrator runs the pipeline against the store one turn at a time and
// persists every outcome: versions, the active pointer, and provenance.
type Orchestrator struct {
	store      *state.Store
	models     ModelFactory
	vf         value.ValueFunction
	config     replay.ReplayConfig
	recorder   *metrics.Recorder
	logger     *slog.Logger
	maxRetries int
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder publishes turn outcomes to r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMaxRetries sets how many times an update_error is retried.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) { o.maxRetries = n }
}

// #endregion

// #region constructor

// NewOrchestrator wires a store to the pipeline. When vf is nil a terminal
// value function anchored at the store's prior is used.
func NewOrchestrator(store *state.Store, models ModelFactory, vf value.ValueFunction, config replay.ReplayConfig, opts ...Option) (*Orchestrator, error) {
	if vf == nil {
		prior, err := store.GetPrior()
		if err != nil {
			return nil, fmt.Errorf("load prior: %w", err)
		}
		vf = value.NewTerminal(prior.Belief)
	}
	o := &Orchestrator{
		store:      store,
		models:     models,
		vf:         vf,
		config:     config,
		logger:     slog.Default(),
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// #endregion

// #region turn

// Turn runs one step against the active belief and persists the outcome.
// Rejections, no-ops, and update errors are logged against the active
// version; a commit or an eval rollback is logged against the proposal.
func (o *Orchestrator) Turn(ctx context.Context, step update.Step) (TurnOutcome, error) {
	current, err := o.store.GetCurrent()
	if err != nil {
		return TurnOutcome{}, fmt.Errorf("get current: %w", err)
	}

	var r replay.ReplayResult
	attempts := 0
	for {
		attempts++
		p := replay.NewPipeline(o.models(ctx), o.vf, o.config)
		r, _ = p.Step(current, step)
		if !shouldRetry(r.Action, attempts, o.maxRetries) || ctx.Err() != nil {
			break
		}
		o.logger.Warn("update failed, retrying", "turn", step.TurnID, "attempt", attempts, "reason", r.Reason)
	}

	out := TurnOutcome{
		Result:          r,
		Attempts:        attempts,
		ActiveVersionID: current.VersionID,
		LoggedVersionID: current.VersionID,
	}

	switch r.Action {
	case "commit":
		if err := o.store.CommitBelief(*r.Proposed); err != nil {
			return out, fmt.Errorf("commit: %w", err)
		}
		out.ActiveVersionID = r.Proposed.VersionID
		out.LoggedVersionID = r.Proposed.VersionID
	case "eval_rollback":
		// The proposal is kept as a version; the active pointer stays on its parent.
		if err := o.store.StoreRejected(*r.Proposed); err != nil {
			return out, fmt.Errorf("store rejected: %w", err)
		}
		out.LoggedVersionID = r.Proposed.VersionID
	}

	if err := o.logProvenance(step, r, out.LoggedVersionID); err != nil {
		return out, err
	}
	o.observe(r)

	o.logger.Info("turn",
		"turn", step.TurnID,
		"action", r.Action,
		"version", out.ActiveVersionID,
		"ess_ratio", r.UpdateMetrics.ESSRatio,
		"step_kl", r.UpdateMetrics.StepKL,
		"reason", r.Reason,
	)
	return out, nil
}

// #endregion

// #region provenance

func (o *Orchestrator) logProvenance(step update.Step, r replay.ReplayResult, versionID string) error {
	rec := o.stepRecord(step, r)
	stepJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal step record: %w", err)
	}
	err = logging.LogDecision(o.store.DB(), logging.ProvenanceEntry{
		VersionID:   versionID,
		TriggerType: "user_turn",
		StepJSON:    string(stepJSON),
		Decision:    r.Action,
		Reason:      r.Reason,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("log provenance: %w", err)
	}
	return nil
}

func (o *Orchestrator) stepRecord(step update.Step, r replay.ReplayResult) logging.StepRecord {
	m := r.UpdateMetrics
	rec := logging.StepRecord{
		TurnID:      step.TurnID,
		Control:     step.Control,
		Disturbance: step.Disturbance,
		LogEvidence: m.LogEvidence,
		ESS:         m.ESS,
		ESSRatio:    m.ESSRatio,
		StepKL:      m.StepKL,
		Mean:        m.Mean,
		Variance:    m.Variance,
		Thresholds: logging.StepThresholds{
			MinESSRatio:      o.config.GateConfig.MinESSRatio,
			MaxStepKL:        o.config.GateConfig.MaxStepKL,
			MinVariance:      o.config.GateConfig.MinVariance,
			MaxTerminalValue: o.config.EvalConfig.MaxTerminalValue,
		},
	}
	if g := r.GateDecision; g != nil {
		rec.GateAction = g.Action
		rec.GateSoftScore = g.SoftScore
		rec.GateReason = g.Reason
	}
	if e := r.EvalResult; e != nil {
		tv := e.TerminalValue
		passed := e.Passed
		rec.TerminalValue = &tv
		rec.EvalPassed = &passed
	}
	return rec
}

// #endregion

// #region metrics

func (o *Orchestrator) observe(r replay.ReplayResult) {
	if o.recorder == nil {
		return
	}
	o.recorder.ObserveDecision(r.Action)
	if r.Proposed != nil {
		o.recorder.ObserveUpdate(r.UpdateMetrics.ESSRatio, r.UpdateMetrics.StepKL)
	}
	if r.Action == "commit" {
		o.recorder.SetActive(r.Proposed.Belief.Len(), r.EvalResult.TerminalValue)
	}
}

// #endregion
