package fulfillment

import (
	"strings"

	"github.com/angelmondragon/mediconnect-backend/internal/requests"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"github.com/angelmondragon/mediconnect-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Actor is the caller identity. It is opaque to the engine apart from the
// ownership rule: a patient may only act on their own requests.
type Actor struct {
	ID   string
	Role enums.ActorRole
}

func (a Actor) validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !a.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing or unknown")
	}
	return nil
}

// mayAccess reports whether the actor may read or act on a request owned by
// patientID.
func (a Actor) mayAccess(patientID uuid.UUID) bool {
	if a.Role != enums.ActorRolePatient {
		return true
	}
	return a.ID == patientID.String()
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{ActorID: a.ID, Role: a.Role.String()}
}

// TransitionInput moves a request to ToStatus. When ExpectedFrom is set the
// call only proceeds if the request is still in that status; a mismatch is a
// CONFLICT, the same outcome as losing the status compare-and-swap.
type TransitionInput struct {
	RequestID    uuid.UUID
	ToStatus     enums.RequestStatus
	ExpectedFrom enums.RequestStatus
	Actor        Actor
}

type DeleteInput struct {
	RequestID uuid.UUID
	Actor     Actor
}

type CreateRequestInput struct {
	PatientID    uuid.UUID
	MedicationID uuid.UUID
	Qty          int
	Actor        Actor
}

type ListInput struct {
	Filters    requests.ListFilters
	Pagination pagination.Params
	Actor      Actor
}

// Reconciliation is a consistent snapshot of one medication's units. Total
// only moves through restock adjustments.
type Reconciliation struct {
	MedicationID uuid.UUID `json:"medication_id"`
	Stock        int       `json:"stock"`
	Held         int       `json:"held"`
	Delivered    int       `json:"delivered"`
	Total        int       `json:"total"`
}
