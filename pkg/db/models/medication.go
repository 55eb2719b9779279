package models

import (
	"time"

	"github.com/google/uuid"
)

// Medication is a catalog entry whose Stock counter is owned by the
// inventory ledger.
type Medication struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"column:code;not null;uniqueIndex:ux_medications_code" json:"code"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Stock     int       `gorm:"column:stock;not null;default:0;check:medications_stock_non_negative,stock >= 0" json:"stock"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
