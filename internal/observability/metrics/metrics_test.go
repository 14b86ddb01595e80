package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTurn(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)

	m.ObserveTurn("prompt_next_field", 0.01)
	m.ObserveTurn("prompt_next_field", 0.02)
	m.ObserveTurn("emergency_alert", 0.005)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.turnsTotal.WithLabelValues("prompt_next_field")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.turnsTotal.WithLabelValues("emergency_alert")))
}

func TestObserveModelCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)

	m.ObserveModelCall("ok")
	m.ObserveModelCall("fallback")
	m.ObserveModelCall("fallback")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.modelCalls.WithLabelValues("ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.modelCalls.WithLabelValues("fallback")))
}

func TestObservePII(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIntakeMetrics(reg)

	m.ObservePII("phone")
	m.ObservePII("phone")
	m.ObservePII("ssn")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.piiDetected.WithLabelValues("phone")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.piiDetected.WithLabelValues("ssn")))
}

func TestNilSafe(t *testing.T) {
	var m *IntakeMetrics

	assert.NotPanics(t, func() {
		m.ObserveTurn("prompt_next_field", 0.01)
		m.ObserveModelCall("ok")
		m.ObservePII("phone")
	})
}
