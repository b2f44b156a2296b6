package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateMedication  OutboxAggregateType = "medication"
	AggregateStockAlert  OutboxAggregateType = "stock_alert"
	AggregateSiteRequest OutboxAggregateType = "site_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMedication,
	AggregateStockAlert,
	AggregateSiteRequest,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventAlertCreated           OutboxEventType = "alert_created"
	EventAlertResolved          OutboxEventType = "alert_resolved"
	EventReplenishmentRequested OutboxEventType = "replenishment_requested"
	EventReplenishmentDecided   OutboxEventType = "replenishment_decided"
	EventStockAdjusted          OutboxEventType = "stock_adjusted"
	EventStockAnomalyDetected   OutboxEventType = "stock_anomaly_detected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAlertCreated,
	EventAlertResolved,
	EventReplenishmentRequested,
	EventReplenishmentDecided,
	EventStockAdjusted,
	EventStockAnomalyDetected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason records why an outbox event was parked.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts   OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable  OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnknownSchema OutboxDLQErrorReason = "unknown_schema"
)
