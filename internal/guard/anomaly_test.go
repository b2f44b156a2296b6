package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

func TestClassifyQuantityChangeBoundaries(t *testing.T) {
	g := NewGuard(nil)

	// 19% delta stays quiet.
	assert.Nil(t, g.ClassifyQuantityChange(100, 119))

	// 20% exactly is not an anomaly: the threshold is strict.
	assert.Nil(t, g.ClassifyQuantityChange(100, 120))

	// 21% is a warning.
	warning := g.ClassifyQuantityChange(100, 121)
	require.NotNil(t, warning)
	assert.Equal(t, enums.AuditSeverityWarning, warning.Severity)
	assert.InDelta(t, 21.0, warning.DeltaPercent, 0.001)

	// 50% exactly stays a warning.
	boundary := g.ClassifyQuantityChange(100, 150)
	require.NotNil(t, boundary)
	assert.Equal(t, enums.AuditSeverityWarning, boundary.Severity)

	// 51% is critical.
	critical := g.ClassifyQuantityChange(100, 151)
	require.NotNil(t, critical)
	assert.Equal(t, enums.AuditSeverityCritical, critical.Severity)
	assert.InDelta(t, 51.0, critical.DeltaPercent, 0.001)
}

func TestClassifyQuantityChangeDecrease(t *testing.T) {
	g := NewGuard(nil)

	anomaly := g.ClassifyQuantityChange(200, 80)
	require.NotNil(t, anomaly)
	assert.Equal(t, enums.AuditSeverityCritical, anomaly.Severity)
	assert.InDelta(t, 60.0, anomaly.DeltaPercent, 0.001)
}

func TestClassifyQuantityChangeZeroPrevious(t *testing.T) {
	g := NewGuard(nil)

	// No defined percentage when the previous quantity is zero.
	assert.Nil(t, g.ClassifyQuantityChange(0, 500))
}
