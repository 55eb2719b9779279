package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
)

// StockMovement is an append-only audit row written alongside every ledger
// mutation. Reservation state is never derived from it.
type StockMovement struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MedicationID uuid.UUID               `gorm:"column:medication_id;type:uuid;not null;index:idx_stock_movements_medication" json:"medication_id"`
	RequestID    *uuid.UUID              `gorm:"column:request_id;type:uuid" json:"request_id,omitempty"`
	Kind         enums.StockMovementKind `gorm:"column:kind;type:text;not null" json:"kind"`
	Qty          int                     `gorm:"column:qty;not null" json:"qty"`
	StockAfter   int                     `gorm:"column:stock_after;not null" json:"stock_after"`
	ActorID      *string                 `gorm:"column:actor_id" json:"actor_id,omitempty"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
