package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for the intake turn pipeline.
type IntakeMetrics struct {
	turnsTotal   *prometheus.CounterVec
	modelCalls   *prometheus.CounterVec
	piiDetected  *prometheus.CounterVec
	turnDuration prometheus.Histogram
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "intake",
			Name:      "turns_total",
			Help:      "Total processed turns by response kind",
		}, []string{"kind"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "intake",
			Name:      "model_calls_total",
			Help:      "Total draft model invocations by outcome",
		}, []string{"outcome"}),
		piiDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "intake",
			Name:      "pii_detected_total",
			Help:      "Total PII detections by field type",
		}, []string{"field_type"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "intake",
			Name:      "turn_duration_seconds",
			Help:      "Latency of turn processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.modelCalls, m.piiDetected, m.turnDuration)
	return m
}

func (m *IntakeMetrics) ObserveTurn(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(kind).Inc()
	m.turnDuration.Observe(seconds)
}

func (m *IntakeMetrics) ObserveModelCall(outcome string) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(outcome).Inc()
}

// ObservePII records a PII detection. Labels are field-type names only.
func (m *IntakeMetrics) ObservePII(fieldType string) {
	if m == nil {
		return
	}
	m.piiDetected.WithLabelValues(fieldType).Inc()
}
