package medications

import (
	"context"
	"errors"
	"fmt"

	dbpkg "github.com/angelmondragon/mediconnect-backend/pkg/db"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const stockCheckConstraint = "medications_stock_non_negative"

// StockChange describes one ledger movement.
type StockChange struct {
	MedicationID uuid.UUID
	Qty          int
	RequestID    *uuid.UUID
	ActorID      string
}

// StockResult reports the counter after a successful movement.
type StockResult struct {
	MedicationID uuid.UUID
	StockAfter   int
}

// Ledger owns the per-medication stock counters. Every mutation is a single
// guarded UPDATE executed inside the caller's transaction, so concurrent
// movements on the same medication are serialized by the database row.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("medications repository required")
	}
	return &Ledger{repo: repo}, nil
}

// Reserve takes change.Qty units out of stock. It fails with
// INSUFFICIENT_STOCK, leaving the counter untouched, when fewer units are
// available.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, change StockChange) (*StockResult, error) {
	if err := validateChange(tx, change); err != nil {
		return nil, err
	}
	repo := l.repo.WithTx(tx)

	ok, err := repo.DecrementStockIfEnough(ctx, change.MedicationID, change.Qty)
	if err != nil {
		if dbpkg.IsCheckViolation(err, stockCheckConstraint) {
			return nil, insufficientStock(change, nil)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if !ok {
		available, err := repo.CurrentStock(ctx, change.MedicationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "medication not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
		}
		return nil, insufficientStock(change, &available)
	}

	return l.journal(ctx, repo, change, enums.StockMovementReserve)
}

// Release returns change.Qty units to stock. A missing medication is an
// internal fault: the units were reserved from that same row.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, change StockChange) (*StockResult, error) {
	if err := validateChange(tx, change); err != nil {
		return nil, err
	}
	repo := l.repo.WithTx(tx)

	ok, err := repo.IncrementStock(ctx, change.MedicationID, change.Qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "medication not found while releasing reservation").
			WithDetails(map[string]any{"medicationId": change.MedicationID.String()})
	}

	return l.journal(ctx, repo, change, enums.StockMovementRelease)
}

// Adjust applies an administrative restock or write-off. Stock never drops
// below zero.
func (l *Ledger) Adjust(ctx context.Context, tx *gorm.DB, medicationID uuid.UUID, delta int, actorID string) (*StockResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock adjustment")
	}
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	repo := l.repo.WithTx(tx)

	ok, err := repo.AdjustStock(ctx, medicationID, delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}
	if !ok {
		exists, err := repo.Exists(ctx, medicationID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medication")
		}
		if !exists {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "medication not found")
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would make stock negative").
			WithDetails(map[string]any{"medicationId": medicationID.String(), "delta": delta})
	}

	change := StockChange{MedicationID: medicationID, Qty: delta, ActorID: actorID}
	return l.journal(ctx, repo, change, enums.StockMovementAdjust)
}

func (l *Ledger) journal(ctx context.Context, repo Repository, change StockChange, kind enums.StockMovementKind) (*StockResult, error) {
	stock, err := repo.CurrentStock(ctx, change.MedicationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}

	movement := &models.StockMovement{
		MedicationID: change.MedicationID,
		RequestID:    change.RequestID,
		Kind:         kind,
		Qty:          change.Qty,
		StockAfter:   stock,
	}
	if change.ActorID != "" {
		actor := change.ActorID
		movement.ActorID = &actor
	}
	if err := repo.RecordMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
	}
	return &StockResult{MedicationID: change.MedicationID, StockAfter: stock}, nil
}

func validateChange(tx *gorm.DB, change StockChange) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock movement")
	}
	if change.MedicationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "medication id required")
	}
	if change.Qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive").
			WithDetails(map[string]any{"field": "qty"})
	}
	return nil
}

func insufficientStock(change StockChange, available *int) error {
	details := map[string]any{
		"medicationId": change.MedicationID.String(),
		"requested":    change.Qty,
	}
	if available != nil {
		details["available"] = *available
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock to reserve").WithDetails(details)
}
