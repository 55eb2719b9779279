package medications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbpkg "github.com/angelmondragon/mediconnect-backend/pkg/db"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service exposes the medication catalog. Stock only moves through the
// Ledger; AdjustStock is the administrative entry point into it.
type Service interface {
	Create(ctx context.Context, input CreateMedicationInput) (*models.Medication, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Medication, error)
	List(ctx context.Context) ([]models.Medication, error)
	AdjustStock(ctx context.Context, input AdjustStockInput) (*models.Medication, error)
	Movements(ctx context.Context, id uuid.UUID, limit int) ([]models.StockMovement, error)
}

type service struct {
	repo   Repository
	ledger *Ledger
	tx     txRunner
	outbox outboxPublisher
}

func NewService(repo Repository, ledger *Ledger, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("medications repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, ledger: ledger, tx: tx, outbox: outbox}, nil
}

func (s *service) Create(ctx context.Context, input CreateMedicationInput) (*models.Medication, error) {
	if err := requireAdmin(input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock must not be negative").
			WithDetails(map[string]any{"field": "initialStock"})
	}

	med, err := s.repo.Create(ctx, &models.Medication{
		Code:  code,
		Name:  name,
		Stock: input.InitialStock,
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "medication code already exists").
				WithDetails(map[string]any{"code": code})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create medication")
	}
	return med, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Medication, error) {
	med, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "medication not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medication")
	}
	return med, nil
}

func (s *service) List(ctx context.Context) ([]models.Medication, error) {
	meds, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list medications")
	}
	return meds, nil
}

func (s *service) AdjustStock(ctx context.Context, input AdjustStockInput) (*models.Medication, error) {
	if err := requireAdmin(input.ActorID, input.ActorRole); err != nil {
		return nil, err
	}
	if input.MedicationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "medication id required")
	}

	var updated *models.Medication
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result, err := s.ledger.Adjust(ctx, tx, input.MedicationID, input.Delta, input.ActorID)
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventMedicationRestocked,
			AggregateType: enums.AggregateMedication,
			AggregateID:   input.MedicationID,
			Actor:         &outbox.ActorRef{ActorID: input.ActorID, Role: input.ActorRole.String()},
			Data: payloads.MedicationRestockedEvent{
				MedicationID: input.MedicationID,
				Delta:        input.Delta,
				StockAfter:   result.StockAfter,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit restock event")
		}

		med, err := s.repo.WithTx(tx).FindByID(ctx, input.MedicationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload medication")
		}
		updated = med
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Movements(ctx context.Context, id uuid.UUID, limit int) ([]models.StockMovement, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListMovements(ctx, id, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return rows, nil
}

func requireAdmin(actorID string, role enums.ActorRole) error {
	if strings.TrimSpace(actorID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if role != enums.ActorRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}
