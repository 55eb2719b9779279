package medications

import (
	"context"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for medications and their stock
// counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, med *models.Medication) (*models.Medication, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Medication, error)
	List(ctx context.Context) ([]models.Medication, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	DecrementStockIfEnough(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)
	CurrentStock(ctx context.Context, id uuid.UUID) (int, error)
	RecordMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, medicationID uuid.UUID, limit int) ([]models.StockMovement, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
