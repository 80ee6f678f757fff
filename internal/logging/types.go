package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	VersionID   string
	TriggerType string
	StepJSON    string
	Decision    string // "commit" | "no_op" | "gate_reject" | "eval_rollback" | "update_error"
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region step-record
// StepRecord captures the complete pipeline inputs and outputs for one step.
// Serialized as JSON into provenance_log.step_json for replay and inspection.
type StepRecord struct {
	TurnID      string  `json:"turn_id"`
	Control     float64 `json:"control"`
	Disturbance float64 `json:"disturbance"`

	// Update metrics
	LogEvidence float64 `json:"log_evidence"`
	ESS         float64 `json:"ess"`
	ESSRatio    float64 `json:"ess_ratio"`
	StepKL      float64 `json:"step_kl"`
	Mean        float64 `json:"mean"`
	Variance    float64 `json:"variance"`

	// Thresholds active at decision time
	Thresholds StepThresholds `json:"thresholds"`

	// Gate output
	GateAction    string  `json:"gate_action,omitempty"`
	GateSoftScore float64 `json:"gate_soft_score,omitempty"`
	GateReason    string  `json:"gate_reason,omitempty"`

	// Eval output
	TerminalValue *float64 `json:"terminal_value,omitempty"`
	EvalPassed    *bool    `json:"eval_passed,omitempty"`
}

// StepThresholds captures the gate/eval config active at decision time.
type StepThresholds struct {
	MinESSRatio      float64 `json:"min_ess_ratio"`
	MaxStepKL        float64 `json:"max_step_kl"`
	MinVariance      float64 `json:"min_variance"`
	MaxTerminalValue float64 `json:"max_terminal_value"`
}

// #endregion step-record
