package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
)

// MedicationRequest is a patient's request for Qty units of a medication.
// Qty never changes after creation; Status only moves through the fulfillment
// state machine.
type MedicationRequest struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PatientID    uuid.UUID           `gorm:"column:patient_id;type:uuid;not null;index:idx_medication_requests_patient"`
	MedicationID uuid.UUID           `gorm:"column:medication_id;type:uuid;not null;index:idx_medication_requests_medication_status,priority:1"`
	Qty          int                 `gorm:"column:qty;not null;check:medication_requests_qty_positive,qty > 0"`
	Status       enums.RequestStatus `gorm:"column:status;type:text;not null;index:idx_medication_requests_medication_status,priority:2"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
