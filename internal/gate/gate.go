package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/belief-controller/internal/update"
)

// #region gate
// Gate evaluates whether a proposed belief should be committed or rejected.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks hard vetoes first, then scores soft signals.
func (g *Gate) Evaluate(metrics update.Metrics) GateDecision {
	var vetoes []VetoSignal

	// 1. Weight degeneracy
	if metrics.ESSRatio < g.config.MinESSRatio {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoLowESS,
			Reason: fmt.Sprintf("ess ratio %.4f below %.4f", metrics.ESSRatio, g.config.MinESSRatio),
		})
	}

	// 2. Step divergence
	if metrics.StepKL > g.config.MaxStepKL {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoDivergence,
			Reason: fmt.Sprintf("step kl %.4f exceeds cap %.4f", metrics.StepKL, g.config.MaxStepKL),
		})
	}

	// 3. Variance collapse
	if metrics.Variance < g.config.MinVariance {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoCollapse,
			Reason: fmt.Sprintf("variance %.3g below %.3g", metrics.Variance, g.config.MinVariance),
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	}

	softScore := computeSoftScore(metrics)
	return GateDecision{
		Action:    "commit",
		Reason:    fmt.Sprintf("passed gate: soft_score=%.4f", softScore),
		SoftScore: softScore,
	}
}

// #endregion gate

// #region helpers
// computeSoftScore rewards well-spread weights (0.5) and small steps (0.5).
// Logged but does not block.
func computeSoftScore(metrics update.Metrics) float64 {
	ess := math.Min(math.Max(metrics.ESSRatio, 0), 1)
	return 0.5*ess + 0.5*math.Exp(-math.Max(metrics.StepKL, 0))
}

// #endregion helpers
