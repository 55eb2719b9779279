package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the request store used by the fulfillment engine. It owns request
// records and is the only writer of their status.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	return &Store{repo: repo}, nil
}

// WithTx binds the store to tx so reads and writes join the caller's unit of
// work.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{repo: s.repo.WithTx(tx)}
}

func (s *Store) Create(ctx context.Context, req *models.MedicationRequest) (*models.MedicationRequest, error) {
	if req == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request required")
	}
	if req.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive").
			WithDetails(map[string]any{"field": "qty"})
	}
	req.Status = enums.RequestStatusCreated
	created, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
	}
	return created, nil
}

func (s *Store) Find(ctx context.Context, id uuid.UUID) (*models.MedicationRequest, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "load request")
	}
	return req, nil
}

func (s *Store) GetStatus(ctx context.Context, id uuid.UUID) (enums.RequestStatus, error) {
	status, err := s.repo.FindStatus(ctx, id)
	if err != nil {
		return "", mapLookupError(err, "load request status")
	}
	return status, nil
}

// SetStatus moves the request from one status to another only if it still
// holds from. A lost race yields CONFLICT; a vanished row yields NOT_FOUND.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, from, to enums.RequestStatus) error {
	ok, err := s.repo.CompareAndSetStatus(ctx, id, from, to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request status")
	}
	if ok {
		return nil
	}

	return s.lostRace(ctx, id, from)
}

func (s *Store) lostRace(ctx context.Context, id uuid.UUID, expected enums.RequestStatus) error {
	current, err := s.repo.FindStatus(ctx, id)
	if err != nil {
		return mapLookupError(err, "load request status")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "request status changed concurrently").
		WithDetails(map[string]any{
			"requestId": id.String(),
			"expected":  expected,
			"current":   current,
		})
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete request")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	return nil
}

// DeleteIfStatus removes the request only if its status is still expected.
// The delete path derives "reservation outstanding" from the status it read,
// so the row must not have moved in between.
func (s *Store) DeleteIfStatus(ctx context.Context, id uuid.UUID, expected enums.RequestStatus) error {
	ok, err := s.repo.DeleteIfStatus(ctx, id, expected)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete request")
	}
	if ok {
		return nil
	}
	return s.lostRace(ctx, id, expected)
}

// List returns one page of requests, newest first.
func (s *Store) List(ctx context.Context, filters ListFilters, params pagination.Params) (*RequestList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := ListQuery{Filters: filters, Limit: limit + 1}

	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.After = after

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}

	rows, next := pagination.Trim(rows, limit, func(row models.MedicationRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	list := &RequestList{Requests: make([]RequestSummary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Requests = append(list.Requests, Summarize(row))
	}
	return list, nil
}

// HeldQty sums the quantity currently reserved against a medication.
func (s *Store) HeldQty(ctx context.Context, medicationID uuid.UUID) (int, error) {
	total, err := s.repo.SumQty(ctx, medicationID, enums.HoldingRequestStatuses())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum held quantity")
	}
	return total, nil
}

// DeliveredQty sums the quantity consumed by delivered requests.
func (s *Store) DeliveredQty(ctx context.Context, medicationID uuid.UUID) (int, error) {
	total, err := s.repo.SumQty(ctx, medicationID, []enums.RequestStatus{enums.RequestStatusDelivered})
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum delivered quantity")
	}
	return total, nil
}

func mapLookupError(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
