package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/mediconnect-backend/pkg/config"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
// Request lifecycle events go to the fulfillment topic; stock movements go to
// the inventory topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.FulfillmentTopic == "" {
		return nil, fmt.Errorf("fulfillment topic is required")
	}
	if cfg.InventoryTopic == "" {
		return nil, fmt.Errorf("inventory topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventRequestCreated,
			AggregateType:  enums.AggregateMedicationRequest,
			Topic:          cfg.FulfillmentTopic,
			PayloadFactory: func() interface{} { return &payloads.RequestCreatedEvent{} },
		},
		{
			EventType:      enums.EventRequestStateChanged,
			AggregateType:  enums.AggregateMedicationRequest,
			Topic:          cfg.FulfillmentTopic,
			PayloadFactory: func() interface{} { return &payloads.RequestStateChangedEvent{} },
		},
		{
			EventType:      enums.EventRequestDeleted,
			AggregateType:  enums.AggregateMedicationRequest,
			Topic:          cfg.FulfillmentTopic,
			PayloadFactory: func() interface{} { return &payloads.RequestDeletedEvent{} },
		},
		{
			EventType:      enums.EventReservationReserved,
			AggregateType:  enums.AggregateMedication,
			Topic:          cfg.InventoryTopic,
			PayloadFactory: func() interface{} { return &payloads.ReservationEvent{} },
		},
		{
			EventType:      enums.EventReservationReleased,
			AggregateType:  enums.AggregateMedication,
			Topic:          cfg.InventoryTopic,
			PayloadFactory: func() interface{} { return &payloads.ReservationEvent{} },
		},
		{
			EventType:      enums.EventMedicationRestocked,
			AggregateType:  enums.AggregateMedication,
			Topic:          cfg.InventoryTopic,
			PayloadFactory: func() interface{} { return &payloads.MedicationRestockedEvent{} },
		},
	} {
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
