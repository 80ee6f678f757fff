package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveDecision("commit")
	r.ObserveDecision("commit")
	r.ObserveDecision("gate_reject")
	r.ObserveUpdate(0.8, 0.02)
	r.SetActive(250, 0.37)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Decisions.WithLabelValues("commit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Decisions.WithLabelValues("gate_reject")))
	assert.Equal(t, 250.0, testutil.ToFloat64(r.Particles))
	assert.Equal(t, 0.37, testutil.ToFloat64(r.TerminalValue))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "belief_ess_ratio")
	assert.Contains(t, names, "belief_step_kl")
}

func TestNewWithoutRegistry(t *testing.T) {
	r := New(nil)
	r.ObserveDecision("no_op")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Decisions.WithLabelValues("no_op")))
}
