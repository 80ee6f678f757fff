package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "belief"

// Recorder exposes pipeline telemetry as prometheus collectors.
type Recorder struct {
	Decisions     *prometheus.CounterVec
	ESSRatio      prometheus.Histogram
	StepKL        prometheus.Histogram
	TerminalValue prometheus.Gauge
	Particles     prometheus.Gauge
}

// New creates a Recorder and registers it with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_decisions_total",
			Help:      "Pipeline outcomes per step, by action.",
		}, []string{"action"}),
		ESSRatio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ess_ratio",
			Help:      "Effective sample size divided by particle count after reweighting.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		StepKL: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_kl",
			Help:      "Gaussian KL divergence from the updated belief to its parent.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		TerminalValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "terminal_value",
			Help:      "Terminal value of the active belief.",
		}),
		Particles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "particles",
			Help:      "Particle count of the active belief.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.Decisions, r.ESSRatio, r.StepKL, r.TerminalValue, r.Particles)
	}
	return r
}

// ObserveDecision counts one pipeline outcome.
func (r *Recorder) ObserveDecision(action string) {
	r.Decisions.WithLabelValues(action).Inc()
}

// ObserveUpdate records update metrics for a proposed belief.
func (r *Recorder) ObserveUpdate(essRatio, stepKL float64) {
	r.ESSRatio.Observe(essRatio)
	r.StepKL.Observe(stepKL)
}

// SetActive records the state of the committed belief.
func (r *Recorder) SetActive(particles int, terminalValue float64) {
	r.Particles.Set(float64(particles))
	r.TerminalValue.Set(terminalValue)
}
