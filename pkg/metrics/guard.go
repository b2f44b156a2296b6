package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GuardMetrics tracks mutation validation outcomes and anomaly detections.
type GuardMetrics struct {
	rejections *prometheus.CounterVec
	anomalies  *prometheus.CounterVec
}

// NewGuardMetrics registers the guard metrics on the provided registerer.
func NewGuardMetrics(reg prometheus.Registerer) *GuardMetrics {
	if reg == nil {
		return &GuardMetrics{}
	}
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mutation_rejections_total",
		Help: "Mutations rejected by validation, labelled by rule set and field.",
	}, []string{"rule_set", "field"})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_anomalies_total",
		Help: "Detected stock variation anomalies, labelled by severity.",
	}, []string{"severity"})
	reg.MustRegister(rejections, anomalies)
	return &GuardMetrics{
		rejections: rejections,
		anomalies:  anomalies,
	}
}

// IncRejection increments the rejection counter for the given rule set/field.
func (g *GuardMetrics) IncRejection(ruleSet, field string) {
	if g == nil || g.rejections == nil {
		return
	}
	g.rejections.WithLabelValues(normalizeLabel(ruleSet), normalizeLabel(field)).Inc()
}

// IncAnomaly increments the anomaly counter for the given severity.
func (g *GuardMetrics) IncAnomaly(severity string) {
	if g == nil || g.anomalies == nil {
		return
	}
	g.anomalies.WithLabelValues(normalizeLabel(severity)).Inc()
}
