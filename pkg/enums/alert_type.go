package enums

import "fmt"

// AlertType classifies the stock condition an alert signals.
type AlertType string

const (
	AlertTypeLowStock  AlertType = "LOW_STOCK"
	AlertTypeExpired   AlertType = "EXPIRED"
	AlertTypeCritical  AlertType = "CRITICAL"
	AlertTypeHighStock AlertType = "HIGH_STOCK"
)

var validAlertTypes = []AlertType{
	AlertTypeLowStock,
	AlertTypeExpired,
	AlertTypeCritical,
	AlertTypeHighStock,
}

// AlertTypes returns every known alert type in declaration order.
func AlertTypes() []AlertType {
	out := make([]AlertType, len(validAlertTypes))
	copy(out, validAlertTypes)
	return out
}

// String implements fmt.Stringer.
func (a AlertType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AlertType.
func (a AlertType) IsValid() bool {
	for _, candidate := range validAlertTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertType converts raw input into an AlertType.
func ParseAlertType(value string) (AlertType, error) {
	for _, candidate := range validAlertTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert type %q", value)
}
