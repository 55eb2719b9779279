package payloads

import (
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/google/uuid"
)

// RequestCreatedEvent announces a new request in CREATED.
type RequestCreatedEvent struct {
	RequestID    uuid.UUID `json:"request_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	MedicationID uuid.UUID `json:"medication_id"`
	Qty          int       `json:"qty"`
}

// RequestStateChangedEvent is emitted for every committed transition.
type RequestStateChangedEvent struct {
	RequestID    uuid.UUID               `json:"request_id"`
	PatientID    uuid.UUID               `json:"patient_id"`
	MedicationID uuid.UUID               `json:"medication_id"`
	From         enums.RequestStatus     `json:"from"`
	To           enums.RequestStatus     `json:"to"`
	Effect       enums.ReservationEffect `json:"reservation_effect"`
}

// ReservationEvent reports a ledger movement caused by a request.
type ReservationEvent struct {
	RequestID    uuid.UUID `json:"request_id"`
	MedicationID uuid.UUID `json:"medication_id"`
	Qty          int       `json:"qty"`
	StockAfter   int       `json:"stock_after"`
	Reason       string    `json:"reason,omitempty"`
}

// RequestDeletedEvent reports a removed request and whether a reservation was
// settled on the way out.
type RequestDeletedEvent struct {
	RequestID           uuid.UUID           `json:"request_id"`
	PatientID           uuid.UUID           `json:"patient_id"`
	MedicationID        uuid.UUID           `json:"medication_id"`
	LastStatus          enums.RequestStatus `json:"last_status"`
	ReleasedReservation bool                `json:"released_reservation"`
}

// MedicationRestockedEvent reports an administrative stock adjustment.
type MedicationRestockedEvent struct {
	MedicationID uuid.UUID `json:"medication_id"`
	Delta        int       `json:"delta"`
	StockAfter   int       `json:"stock_after"`
}
