package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value gathers reg and returns the counter value or histogram sample
// count of the series with the given labels.
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue series
				}
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveRun(RunConverged, 4, 10*time.Millisecond)
	r.ObserveRun(RunConverged, 2, 5*time.Millisecond)
	r.ObserveRun(RunTimeout, 300, time.Second)
	obs := r.CallObserver("rewrite")
	obs("retry")
	obs("success")
	r.AddSubstitutions(3)
	r.AddSubstitutions(0)

	assert.Equal(t, 2.0, value(t, reg, "kwtune_optimize_runs_total", map[string]string{"outcome": RunConverged}))
	assert.Equal(t, 1.0, value(t, reg, "kwtune_optimize_runs_total", map[string]string{"outcome": RunTimeout}))
	assert.Equal(t, 3.0, value(t, reg, "kwtune_optimize_iterations", nil))
	assert.Equal(t, 1.0, value(t, reg, "kwtune_collaborator_calls_total", map[string]string{"op": "rewrite", "outcome": "retry"}))
	assert.Equal(t, 3.0, value(t, reg, "kwtune_forbidden_substitutions_total", nil))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRun(RunError, 0, 0)
		r.ObserveCall("rewrite", "failure")
		r.CallObserver("rewrite")("success")
		r.AddSubstitutions(1)
	})
}
