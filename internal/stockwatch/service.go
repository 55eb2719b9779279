package stockwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
)

// ConsumerName scopes this consumer's dedupe claims.
const ConsumerName = "stockwatch"

// Handler processes one decoded inventory event.
type Handler interface {
	Handle(ctx context.Context, envelope Envelope) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type deduper interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, eventID uuid.UUID) error
}

// Service consumes inventory events from Pub/Sub. Redelivered events are
// skipped through the deduper.
type Service struct {
	subscription receiver
	handler      Handler
	dedupe       deduper
	logg         *logger.Logger
}

func NewService(subscription receiver, handler Handler, dedupe deduper, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("inventory subscription is required")
	}
	if handler == nil {
		return nil, errors.New("stock handler is required")
	}
	if dedupe == nil {
		return nil, errors.New("deduper is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		handler:      handler,
		dedupe:       dedupe,
		logg:         logg,
	}, nil
}

// Run receives until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process reports whether the message should be redelivered.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) bool {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := decodeMessage(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid inventory event dropped")
		return false
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return false
	}

	first, err := s.dedupe.Claim(logCtx, eventID)
	if err != nil {
		s.logg.Error(logCtx, "dedupe claim failed", err)
		return true
	}
	if !first {
		s.logg.Debug(logCtx, "event already processed")
		return false
	}

	if err := s.handler.Handle(logCtx, *envelope); err != nil {
		s.logg.Error(logCtx, "stock handler failed", err)
		if relErr := s.dedupe.Release(logCtx, eventID); relErr != nil {
			s.logg.Error(logCtx, "failed to release dedupe claim", relErr)
		}
		return true
	}
	return false
}

func decodeMessage(msg *gcppubsub.Message) (*Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(strings.TrimSpace(msg.Attributes["aggregate_type"]))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := strings.TrimSpace(msg.Attributes["aggregate_id"])
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(msg.Attributes["created_at"])); err == nil {
			occurredAt = parsed
		}
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	return &Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}
