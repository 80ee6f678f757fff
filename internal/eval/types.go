package eval

// #region eval-config
// EvalConfig holds thresholds for post-commit validation.
type EvalConfig struct {
	MaxTerminalValue float64 // reject if the value function exceeds this
	MaxAbsMean       float64 // reject if |mean| exceeds this (0 = disabled)
}

// DefaultEvalConfig returns sensible defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxTerminalValue: 10.0,
		MaxAbsMean:       0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-commit validation.
type EvalResult struct {
	Passed        bool
	Metrics       []EvalMetric
	Reason        string
	TerminalValue float64
}

// #endregion eval-result
