package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/mediconnect-backend/internal/fulfillment"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/metrics"
	"github.com/google/uuid"
)

const stockReconcileJobName = "stock-reconcile"

type stockJournal interface {
	List(ctx context.Context) ([]models.Medication, error)
	ListMovements(ctx context.Context, medicationID uuid.UUID, limit int) ([]models.StockMovement, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, medicationID uuid.UUID) (*fulfillment.Reconciliation, error)
}

type StockReconcileJobParams struct {
	Logger     *logger.Logger
	Journal    stockJournal
	Reconciler reconciler
	Metrics    *metrics.JobMetrics
}

// NewStockReconcileJob compares every medication's live counter with the
// stock recorded by its latest journal entry. A mismatch means stock was
// written outside the ledger; it is logged and exported, never corrected.
func NewStockReconcileJob(params StockReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Journal == nil {
		return nil, fmt.Errorf("stock journal required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &stockReconcileJob{
		logg:       params.Logger,
		journal:    params.Journal,
		reconciler: params.Reconciler,
		metrics:    params.Metrics,
	}, nil
}

type stockReconcileJob struct {
	logg       *logger.Logger
	journal    stockJournal
	reconciler reconciler
	metrics    *metrics.JobMetrics
}

func (j *stockReconcileJob) Name() string { return stockReconcileJobName }

func (j *stockReconcileJob) Run(ctx context.Context) error {
	meds, err := j.journal.List(ctx)
	if err != nil {
		return fmt.Errorf("list medications: %w", err)
	}

	mismatches := 0
	for _, med := range meds {
		rec, err := j.reconciler.Reconcile(ctx, med.ID)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", med.ID, err)
		}
		latest, err := j.journal.ListMovements(ctx, med.ID, 1)
		if err != nil {
			return fmt.Errorf("read journal %s: %w", med.ID, err)
		}
		if len(latest) == 0 || latest[0].StockAfter == rec.Stock {
			continue
		}

		mismatches++
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"medication_id": med.ID.String(),
			"stock":         rec.Stock,
			"journal_stock": latest[0].StockAfter,
			"held":          rec.Held,
			"delivered":     rec.Delivered,
			"total":         rec.Total,
			"last_movement": latest[0].Kind,
			"last_recorded": latest[0].CreatedAt,
		}), "stock counter disagrees with journal")
	}

	j.metrics.SetMismatches(stockReconcileJobName, mismatches)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"medications": len(meds),
		"mismatches":  mismatches,
	}), "stock reconcile complete")
	return nil
}
