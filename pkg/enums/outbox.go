package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBin       OutboxAggregateType = "bin"
	AggregateWorkOrder OutboxAggregateType = "work_order"
	AggregateComponent OutboxAggregateType = "component"
	AggregatePrintJob  OutboxAggregateType = "print_job"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBin,
	AggregateWorkOrder,
	AggregateComponent,
	AggregatePrintJob,
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
	EventBinScanned          OutboxEventType = "bin_scanned"
	EventBinStatusChanged    OutboxEventType = "bin_status_changed"
	EventBinAssigned         OutboxEventType = "bin_assigned"
	EventBinReleased         OutboxEventType = "bin_released"
	EventBinReturned         OutboxEventType = "bin_returned"
	EventComponentCalibrated OutboxEventType = "component_calibrated"
	EventLabelRequested      OutboxEventType = "label_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBinScanned,
	EventBinStatusChanged,
	EventBinAssigned,
	EventBinReleased,
	EventBinReturned,
	EventComponentCalibrated,
	EventLabelRequested,
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

// OutboxDLQErrorReason records why the publisher stopped retrying an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
