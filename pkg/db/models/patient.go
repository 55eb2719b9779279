package models

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	IDNumber  string    `gorm:"column:id_number;not null;uniqueIndex:ux_patients_id_number" json:"id_number"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
