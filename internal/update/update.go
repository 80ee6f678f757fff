package update

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/google/uuid"
)

// #region update-function
// Update is a pure function that reweights the current belief by one
// observation and returns the normalized successor with its metrics.
// old is never mutated. Resampling is left to the caller.
func Update(old state.BeliefRecord, step Step, m belief.Model, config UpdateConfig) (UpdateResult, error) {
	start := time.Now()

	// 1. Importance reweighting
	next, err := old.Belief.NextState(m, step.Control, step.Disturbance)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("next state: %w", err)
	}
	logEvidence, err := next.LogSumExp()
	if err != nil {
		return UpdateResult{}, fmt.Errorf("log evidence: %w", err)
	}
	if err := next.NormalizeWeights(); err != nil {
		return UpdateResult{}, fmt.Errorf("normalize: %w", err)
	}

	// 2. Compare against the normalized predecessor
	prev := old.Belief.Copy()
	if err := prev.NormalizeWeights(); err != nil {
		return UpdateResult{}, fmt.Errorf("normalize previous: %w", err)
	}
	var maxShift float64
	prevLW := prev.LogWeights()
	for i, lw := range next.LogWeights() {
		maxShift = math.Max(maxShift, math.Abs(lw-prevLW[i]))
	}

	// 3. Moments and divergence
	ess, err := next.ESS()
	if err != nil {
		return UpdateResult{}, fmt.Errorf("ess: %w", err)
	}
	mean, variance, err := next.Moments()
	if err != nil {
		return UpdateResult{}, fmt.Errorf("moments: %w", err)
	}
	stepKL, err := next.KL(prev)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("step kl: %w", err)
	}

	metrics := Metrics{
		LogEvidence:    logEvidence,
		ESS:            ess,
		ESSRatio:       ess / float64(next.Len()),
		StepKL:         stepKL,
		Mean:           mean,
		Variance:       variance,
		MaxWeightShift: maxShift,
		UpdateTimeMs:   time.Since(start).Milliseconds(),
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("marshal metrics: %w", err)
	}

	// 4. Build result
	newRec := state.BeliefRecord{
		VersionID:   uuid.New().String(),
		ParentID:    old.VersionID,
		Belief:      next,
		CreatedAt:   time.Now().UTC(),
		MetricsJSON: string(metricsJSON),
	}

	decision := Decision{Action: "no_op", Reason: "no weight change"}
	if maxShift > config.NoOpTolerance {
		decision = Decision{
			Action: "commit",
			Reason: fmt.Sprintf("turn %s: ess %.2f, step kl %.6f", step.TurnID, ess, stepKL),
		}
	}

	return UpdateResult{
		NewState: newRec,
		Decision: decision,
		Metrics:  metrics,
	}, nil
}

// #endregion update-function
