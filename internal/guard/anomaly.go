package guard

import (
	"math"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// Thresholds are strict: a delta of exactly 20% or 50% is not an anomaly of
// the next tier.
const (
	warningDeltaPercent  = 20.0
	criticalDeltaPercent = 50.0
)

// Anomaly describes an unusual stock variation. It never blocks the mutation
// that produced it.
type Anomaly struct {
	PreviousQuantity int
	NewQuantity      int
	DeltaPercent     float64
	Severity         enums.AuditSeverity
}

// ClassifyQuantityChange computes the percentage variation between the
// previous and new quantity and returns an Anomaly when it crosses the
// warning or critical threshold. A zero previous quantity has no defined
// percentage and is never classified.
func (g *Guard) ClassifyQuantityChange(previous, next int) *Anomaly {
	if previous <= 0 {
		return nil
	}

	percentage := math.Abs(float64(next-previous)) / float64(previous) * 100

	var severity enums.AuditSeverity
	switch {
	case percentage > criticalDeltaPercent:
		severity = enums.AuditSeverityCritical
	case percentage > warningDeltaPercent:
		severity = enums.AuditSeverityWarning
	default:
		return nil
	}

	g.metrics.IncAnomaly(string(severity))

	return &Anomaly{
		PreviousQuantity: previous,
		NewQuantity:      next,
		DeltaPercent:     percentage,
		Severity:         severity,
	}
}
