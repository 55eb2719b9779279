package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateMedicationRequest OutboxAggregateType = "medication_request"
	AggregateMedication        OutboxAggregateType = "medication"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateMedicationRequest,
	AggregateMedication,
}

// IsValid reports whether the value is a known aggregate type.
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

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventRequestCreated      OutboxEventType = "request_created"
	EventRequestStateChanged OutboxEventType = "request_state_changed"
	EventRequestDeleted      OutboxEventType = "request_deleted"
	EventReservationReserved OutboxEventType = "reservation_reserved"
	EventReservationReleased OutboxEventType = "reservation_released"
	EventMedicationRestocked OutboxEventType = "medication_restocked"
)

var validOutboxEventTypes = []OutboxEventType{
	EventRequestCreated,
	EventRequestStateChanged,
	EventRequestDeleted,
	EventReservationReserved,
	EventReservationReleased,
	EventMedicationRestocked,
}

// IsValid reports whether the value is a known event type.
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
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
