package fulfillment

import (
	"context"

	"github.com/angelmondragon/mediconnect-backend/internal/medications"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryLedger moves reserved units in and out of medication stock inside
// the caller's transaction.
type InventoryLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, change medications.StockChange) (*medications.StockResult, error)
	Release(ctx context.Context, tx *gorm.DB, change medications.StockChange) (*medications.StockResult, error)
}
