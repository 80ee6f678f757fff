package gate

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoLowESS     VetoType = "low_ess"
	VetoDivergence VetoType = "step_divergence"
	VetoCollapse   VetoType = "variance_collapse"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for gate decisions.
type GateConfig struct {
	MinESSRatio float64 // reject when ESS / N falls below this
	MaxStepKL   float64 // reject when KL(new || old) exceeds this
	MinVariance float64 // reject when the fitted variance collapses below this
}

// DefaultGateConfig returns sensible defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinESSRatio: 0.05,
		MaxStepKL:   5.0,
		MinVariance: 1e-9,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	SoftScore   float64      // 0-1 composite of soft signals (for logging)
}

// #endregion gate-decision
