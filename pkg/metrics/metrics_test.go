package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestGuardMetricsCountsAnomalies(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGuardMetrics(reg)

	m.IncAnomaly("warning")
	m.IncAnomaly("warning")
	m.IncAnomaly("critical")
	m.IncRejection("quantity_update", "reason")

	families := gather(t, reg)
	if got := counterValue(families, "stock_anomalies_total", "severity", "warning"); got != 2 {
		t.Fatalf("expected 2 warning anomalies, got %v", got)
	}
	if got := counterValue(families, "stock_anomalies_total", "severity", "critical"); got != 1 {
		t.Fatalf("expected 1 critical anomaly, got %v", got)
	}
	if got := counterValue(families, "mutation_rejections_total", "field", "reason"); got != 1 {
		t.Fatalf("expected 1 rejection, got %v", got)
	}
}

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("expired_stock")
	m.IncFailure("expired_stock")
	m.IncFailure("expired_stock")
	m.ObserveDuration("expired_stock", 150*time.Millisecond)

	families := gather(t, reg)
	if got := counterValue(families, "job_success", "job", "expired_stock"); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := counterValue(families, "job_failure", "job", "expired_stock"); got != 2 {
		t.Fatalf("expected 2 failures, got %v", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	g := NewGuardMetrics(nil)
	g.IncAnomaly("warning")
	g.IncRejection("creation", "name")

	c := NewCronJobMetrics(nil)
	c.IncSuccess("low_stock")
	c.ObserveDuration("low_stock", time.Second)
}

func gather(t *testing.T, reg *prometheus.Registry) []*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	return families
}

func counterValue(families []*dto.MetricFamily, name, labelName, labelValue string) float64 {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}
