package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/belief-controller/internal/state"
	"github.com/danielpatrickdp/belief-controller/internal/value"
)

// #region eval-harness
// EvalHarness runs post-commit validation on a belief through a value function.
type EvalHarness struct {
	config EvalConfig
	vf     value.ValueFunction
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig, vf value.ValueFunction) *EvalHarness {
	return &EvalHarness{config: config, vf: vf}
}

// Run evaluates the committed belief. Any failing check means the caller
// should roll back to the parent version.
func (h *EvalHarness) Run(newState state.BeliefRecord) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	// 1. Terminal value (divergence to the prior for the terminal variant)
	tv, err := h.vf.Evaluate(newState.Belief)
	if err != nil {
		return EvalResult{
			Passed:        false,
			Metrics:       []EvalMetric{{Name: "terminal_value", Value: math.NaN(), Pass: false}},
			Reason:        fmt.Sprintf("eval failed: value function: %v", err),
			TerminalValue: math.NaN(),
		}
	}
	tvPass := tv <= h.config.MaxTerminalValue
	metrics = append(metrics, EvalMetric{Name: "terminal_value", Value: tv, Pass: tvPass})
	if !tvPass {
		failReasons = append(failReasons, fmt.Sprintf("terminal value %.4f exceeds %.4f", tv, h.config.MaxTerminalValue))
	}

	// 2. Location bound
	mean, variance, err := newState.Belief.Moments()
	if err != nil {
		failReasons = append(failReasons, fmt.Sprintf("moments: %v", err))
	} else {
		meanPass := h.config.MaxAbsMean <= 0 || math.Abs(mean) <= h.config.MaxAbsMean
		metrics = append(metrics,
			EvalMetric{Name: "mean", Value: mean, Pass: meanPass},
			EvalMetric{Name: "variance", Value: variance, Pass: true},
		)
		if !meanPass {
			failReasons = append(failReasons, fmt.Sprintf("|mean| %.4f exceeds %.4f", math.Abs(mean), h.config.MaxAbsMean))
		}
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:        len(failReasons) == 0,
		Metrics:       metrics,
		Reason:        reason,
		TerminalValue: tv,
	}
}

// #endregion eval-harness
