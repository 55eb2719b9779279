package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/mediconnect-backend/internal/medications"
	"github.com/angelmondragon/mediconnect-backend/internal/patients"
	"github.com/angelmondragon/mediconnect-backend/internal/requests"
	"github.com/angelmondragon/mediconnect-backend/pkg/config"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/metrics"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	operationTransition = "transition"
	operationDelete     = "delete"
	operationCreate     = "create_request"
)

// Service is the fulfillment engine. It is the only writer of request status
// and, through the ledger, of medication stock on behalf of requests.
type Service interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*models.MedicationRequest, error)
	Transition(ctx context.Context, input TransitionInput) (*models.MedicationRequest, error)
	Delete(ctx context.Context, input DeleteInput) error
	GetRequest(ctx context.Context, id uuid.UUID, actor Actor) (*models.MedicationRequest, error)
	ListRequests(ctx context.Context, input ListInput) (*requests.RequestList, error)
	Reconcile(ctx context.Context, medicationID uuid.UUID) (*Reconciliation, error)
}

// ServiceParams wires the engine's collaborators.
type ServiceParams struct {
	Requests    *requests.Store
	Medications medications.Repository
	Patients    patients.Repository
	Ledger      InventoryLedger
	Tx          txRunner
	Outbox      outboxPublisher
	Logger      *logger.Logger
	Metrics     *metrics.FulfillmentMetrics
	Config      config.FulfillmentConfig
}

type service struct {
	requests    *requests.Store
	medications medications.Repository
	patients    patients.Repository
	ledger      InventoryLedger
	tx          txRunner
	outbox      outboxPublisher
	logg        *logger.Logger
	metrics     *metrics.FulfillmentMetrics
	cfg         config.FulfillmentConfig
}

func NewService(params ServiceParams) (Service, error) {
	if params.Requests == nil {
		return nil, fmt.Errorf("request store required")
	}
	if params.Medications == nil {
		return nil, fmt.Errorf("medications repository required")
	}
	if params.Patients == nil {
		return nil, fmt.Errorf("patients repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config
	if cfg.DeleteMaxAttempts < 1 {
		cfg.DeleteMaxAttempts = 1
	}
	return &service{
		requests:    params.Requests,
		medications: params.Medications,
		patients:    params.Patients,
		ledger:      params.Ledger,
		tx:          params.Tx,
		outbox:      params.Outbox,
		logg:        params.Logger,
		metrics:     params.Metrics,
		cfg:         cfg,
	}, nil
}

// CreateRequest stores a new request in CREATED. No stock is reserved and
// none is checked: availability is decided when the request is approved.
func (s *service) CreateRequest(ctx context.Context, input CreateRequestInput) (created *models.MedicationRequest, err error) {
	defer s.observe(operationCreate, time.Now(), &err)

	if err := input.Actor.validate(); err != nil {
		return nil, err
	}
	if input.PatientID == uuid.Nil || input.MedicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient id and medication id are required")
	}
	if input.Qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be at least 1").
			WithDetails(map[string]any{"field": "qty"})
	}
	if !input.Actor.mayAccess(input.PatientID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "patients may only request medication for themselves")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		exists, err := s.patients.WithTx(tx).Exists(ctx, input.PatientID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check patient")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "patient not found")
		}

		medExists, err := s.medications.WithTx(tx).Exists(ctx, input.MedicationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check medication")
		}
		if !medExists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "medication not found")
		}

		req, err := s.requests.WithTx(tx).Create(ctx, &models.MedicationRequest{
			PatientID:    input.PatientID,
			MedicationID: input.MedicationID,
			Qty:          input.Qty,
		})
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventRequestCreated,
			AggregateType: enums.AggregateMedicationRequest,
			AggregateID:   req.ID,
			Actor:         input.Actor.ref(),
			Data: payloads.RequestCreatedEvent{
				RequestID:    req.ID,
				PatientID:    req.PatientID,
				MedicationID: req.MedicationID,
				Qty:          req.Qty,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit request created")
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithMedicationRequestID(ctx, created.ID.String())
	s.logg.Info(logCtx, "medication request created")
	return created, nil
}

// Transition applies one move of the state machine. The ledger effect, the
// status compare-and-swap and the outbox events commit as one unit: any
// failure, including a lost race, leaves stock and status untouched.
func (s *service) Transition(ctx context.Context, input TransitionInput) (updated *models.MedicationRequest, err error) {
	defer s.observe(operationTransition, time.Now(), &err)

	if err := input.Actor.validate(); err != nil {
		return nil, err
	}
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if !input.ToStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown target status").
			WithDetails(map[string]any{"status": input.ToStatus})
	}
	if input.ExpectedFrom != "" && !input.ExpectedFrom.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown expected status").
			WithDetails(map[string]any{"status": input.ExpectedFrom})
	}

	var (
		from   enums.RequestStatus
		effect enums.ReservationEffect
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.requests.WithTx(tx)
		req, err := store.Find(ctx, input.RequestID)
		if err != nil {
			return err
		}
		if !input.Actor.mayAccess(req.PatientID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another patient")
		}

		from = req.Status
		if input.ExpectedFrom != "" && input.ExpectedFrom != from {
			return pkgerrors.New(pkgerrors.CodeConflict, "request status changed concurrently").
				WithDetails(map[string]any{
					"requestId": req.ID.String(),
					"expected":  input.ExpectedFrom,
					"current":   from,
				})
		}
		if !from.CanTransitionTo(input.ToStatus) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "transition not allowed from current status").
				WithDetails(map[string]any{
					"requestId": req.ID.String(),
					"from":      from,
					"to":        input.ToStatus,
					"allowed":   from.AllowedTransitions(),
				})
		}

		effect = enums.ReservationEffectFor(from, input.ToStatus)
		reservation, err := s.applyEffect(ctx, tx, req, effect, input.Actor)
		if err != nil {
			return err
		}

		if err := store.SetStatus(ctx, req.ID, from, input.ToStatus); err != nil {
			return err
		}
		req.Status = input.ToStatus

		if err := s.emitTransition(ctx, tx, req, from, effect, reservation, input.Actor); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(from.String(), input.ToStatus.String())
	if effect != enums.ReservationEffectNone {
		s.metrics.IncLedgerEffect(string(effect))
	}
	logCtx := s.logg.WithFields(s.logg.WithMedicationRequestID(ctx, updated.ID.String()), map[string]any{
		"from":   from,
		"to":     input.ToStatus,
		"effect": effect,
	})
	s.logg.Info(logCtx, "medication request transitioned")
	return updated, nil
}

func (s *service) applyEffect(ctx context.Context, tx *gorm.DB, req *models.MedicationRequest, effect enums.ReservationEffect, actor Actor) (*medications.StockResult, error) {
	change := medications.StockChange{
		MedicationID: req.MedicationID,
		Qty:          req.Qty,
		RequestID:    &req.ID,
		ActorID:      actor.ID,
	}
	switch effect {
	case enums.ReservationEffectReserve:
		return s.ledger.Reserve(ctx, tx, change)
	case enums.ReservationEffectRelease:
		return s.ledger.Release(ctx, tx, change)
	default:
		return nil, nil
	}
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, req *models.MedicationRequest, from enums.RequestStatus, effect enums.ReservationEffect, reservation *medications.StockResult, actor Actor) error {
	changed := outbox.DomainEvent{
		EventType:     enums.EventRequestStateChanged,
		AggregateType: enums.AggregateMedicationRequest,
		AggregateID:   req.ID,
		Actor:         actor.ref(),
		Data: payloads.RequestStateChangedEvent{
			RequestID:    req.ID,
			PatientID:    req.PatientID,
			MedicationID: req.MedicationID,
			From:         from,
			To:           req.Status,
			Effect:       effect,
		},
	}
	if err := s.outbox.Emit(ctx, tx, changed); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit state change")
	}
	if reservation == nil {
		return nil
	}

	eventType := enums.EventReservationReserved
	if effect == enums.ReservationEffectRelease {
		eventType = enums.EventReservationReleased
	}
	return s.emitReservation(ctx, tx, eventType, req, reservation, string(req.Status), actor)
}

func (s *service) emitReservation(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, req *models.MedicationRequest, reservation *medications.StockResult, reason string, actor Actor) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateMedication,
		AggregateID:   req.MedicationID,
		Actor:         actor.ref(),
		Data: payloads.ReservationEvent{
			RequestID:    req.ID,
			MedicationID: req.MedicationID,
			Qty:          req.Qty,
			StockAfter:   reservation.StockAfter,
			Reason:       reason,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation event")
	}
	return nil
}

func (s *service) GetRequest(ctx context.Context, id uuid.UUID, actor Actor) (*models.MedicationRequest, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	req, err := s.requests.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.mayAccess(req.PatientID) {
		// Same answer as a missing row so ids of other patients do not leak.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	return req, nil
}

// ListRequests pages through requests. Patients only ever see their own.
func (s *service) ListRequests(ctx context.Context, input ListInput) (*requests.RequestList, error) {
	if err := input.Actor.validate(); err != nil {
		return nil, err
	}
	filters := input.Filters
	if input.Actor.Role == enums.ActorRolePatient {
		if filters.PatientID != nil && !input.Actor.mayAccess(*filters.PatientID) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "patients may only list their own requests")
		}
		patientID, err := uuid.Parse(input.Actor.ID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "patient actor id is not a patient reference")
		}
		filters.PatientID = &patientID
	}
	return s.requests.List(ctx, filters, input.Pagination)
}

// Reconcile reads stock, held and delivered quantities in one transaction so
// the snapshot is consistent.
func (s *service) Reconcile(ctx context.Context, medicationID uuid.UUID) (*Reconciliation, error) {
	var out *Reconciliation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		stock, err := s.medications.WithTx(tx).CurrentStock(ctx, medicationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "medication not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
		}
		store := s.requests.WithTx(tx)
		held, err := store.HeldQty(ctx, medicationID)
		if err != nil {
			return err
		}
		delivered, err := store.DeliveredQty(ctx, medicationID)
		if err != nil {
			return err
		}
		out = &Reconciliation{
			MedicationID: medicationID,
			Stock:        stock,
			Held:         held,
			Delivered:    delivered,
			Total:        stock + held + delivered,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) observe(operation string, start time.Time, errp *error) {
	s.metrics.ObserveOperation(operation, time.Since(start), *errp)
}
