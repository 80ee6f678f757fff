package update

import "github.com/danielpatrickdp/belief-controller/internal/state"

// #region step
// Step carries one control/observation pair into the pure update function.
type Step struct {
	TurnID      string
	Control     float64
	Disturbance float64
}

// #endregion step

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from an update cycle.
type Metrics struct {
	LogEvidence    float64 `json:"log_evidence"` // log-sum-exp of the reweighted log-weights before normalization
	ESS            float64 `json:"ess"`
	ESSRatio       float64 `json:"ess_ratio"` // ESS / particle count
	StepKL         float64 `json:"step_kl"`   // KL(new || old)
	Mean           float64 `json:"mean"`
	Variance       float64 `json:"variance"`
	MaxWeightShift float64 `json:"max_weight_shift"` // max |new - old| over normalized log-weights
	UpdateTimeMs   int64   `json:"update_time_ms"`
}

// #endregion metrics

// #region update-config
// UpdateConfig holds tolerances for the update function.
type UpdateConfig struct {
	NoOpTolerance float64 // max normalized log-weight shift treated as no change
}

// DefaultUpdateConfig returns sensible defaults.
func DefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{NoOpTolerance: 1e-12}
}

// #endregion update-config

// #region update-result
// UpdateResult bundles everything returned by Update().
type UpdateResult struct {
	NewState state.BeliefRecord
	Decision Decision
	Metrics  Metrics
}

// #endregion update-result
