package stockwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/metrics"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox/payloads"
)

// Watcher records the stock level each inventory event reports and raises a
// low-stock alert when it falls to the threshold or below.
type Watcher struct {
	threshold int
	metrics   *metrics.StockMetrics
	logg      *logger.Logger
}

func NewWatcher(threshold int, m *metrics.StockMetrics, logg *logger.Logger) (*Watcher, error) {
	if threshold < 0 {
		return nil, errors.New("low stock threshold must not be negative")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Watcher{threshold: threshold, metrics: m, logg: logg}, nil
}

// Handle implements Handler. Request lifecycle events are ignored.
func (w *Watcher) Handle(ctx context.Context, envelope Envelope) error {
	medicationID, stockAfter, ok, err := stockLevel(envelope)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	id := medicationID.String()
	w.metrics.SetLevel(id, stockAfter)
	if stockAfter > w.threshold {
		return nil
	}

	w.metrics.IncLowStock(id)
	w.logg.Warn(w.logg.WithFields(w.logg.WithMedicationID(ctx, id), map[string]any{
		"stock_after": stockAfter,
		"threshold":   w.threshold,
	}), "medication stock low")
	return nil
}

func stockLevel(envelope Envelope) (uuid.UUID, int, bool, error) {
	switch envelope.EventType {
	case enums.EventReservationReserved, enums.EventReservationReleased:
		var payload payloads.ReservationEvent
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return uuid.Nil, 0, false, fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
		}
		return payload.MedicationID, payload.StockAfter, true, nil
	case enums.EventMedicationRestocked:
		var payload payloads.MedicationRestockedEvent
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return uuid.Nil, 0, false, fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
		}
		return payload.MedicationID, payload.StockAfter, true, nil
	default:
		return uuid.Nil, 0, false, nil
	}
}
