package requests

import (
	"time"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/pagination"
	"github.com/google/uuid"
)

// ListFilters narrows a request listing. Zero values mean no filter.
type ListFilters struct {
	PatientID    *uuid.UUID
	MedicationID *uuid.UUID
	Status       *enums.RequestStatus
}

// ListQuery is the repository-level form of a listing, newest first.
type ListQuery struct {
	Filters ListFilters
	Limit   int
	After   *pagination.Cursor
}

// RequestSummary is the public view of a request.
type RequestSummary struct {
	ID           uuid.UUID           `json:"id"`
	PatientID    uuid.UUID           `json:"patient_id"`
	MedicationID uuid.UUID           `json:"medication_id"`
	Qty          int                 `json:"qty"`
	Status       enums.RequestStatus `json:"status"`
	HoldsStock   bool                `json:"holds_stock"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// RequestList is a page of requests.
type RequestList struct {
	Requests   []RequestSummary `json:"requests"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Summarize maps a stored row to its public view.
func Summarize(req models.MedicationRequest) RequestSummary {
	return RequestSummary{
		ID:           req.ID,
		PatientID:    req.PatientID,
		MedicationID: req.MedicationID,
		Qty:          req.Qty,
		Status:       req.Status,
		HoldsStock:   req.Status.HoldsReservation(),
		CreatedAt:    req.CreatedAt,
		UpdatedAt:    req.UpdatedAt,
	}
}
