package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mediconnect-backend/internal/fulfillment"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/metrics"
)

type fakeJournal struct {
	meds      []models.Medication
	movements map[uuid.UUID][]models.StockMovement
	err       error
}

func (f *fakeJournal) List(context.Context) ([]models.Medication, error) {
	return f.meds, f.err
}

func (f *fakeJournal) ListMovements(_ context.Context, id uuid.UUID, limit int) ([]models.StockMovement, error) {
	rows := f.movements[id]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type fakeReconciler struct {
	stock map[uuid.UUID]int
}

func (f *fakeReconciler) Reconcile(_ context.Context, id uuid.UUID) (*fulfillment.Reconciliation, error) {
	stock, ok := f.stock[id]
	if !ok {
		return nil, errors.New("unknown medication")
	}
	return &fulfillment.Reconciliation{MedicationID: id, Stock: stock, Total: stock}, nil
}

func TestStockReconcileJobCountsMismatches(t *testing.T) {
	inSync, drifted, untouched := uuid.New(), uuid.New(), uuid.New()
	journal := &fakeJournal{
		meds: []models.Medication{{ID: inSync}, {ID: drifted}, {ID: untouched}},
		movements: map[uuid.UUID][]models.StockMovement{
			inSync:  {{MedicationID: inSync, Kind: enums.StockMovementReserve, StockAfter: 6}},
			drifted: {{MedicationID: drifted, Kind: enums.StockMovementRelease, StockAfter: 10}},
		},
	}
	reconciler := &fakeReconciler{stock: map[uuid.UUID]int{inSync: 6, drifted: 8, untouched: 3}}
	reg := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(reg)

	job, err := NewStockReconcileJob(StockReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Journal:    journal,
		Reconciler: reconciler,
		Metrics:    jobMetrics,
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, stockReconcileJobName, job.Name())
	assert.Equal(t, float64(1), mismatchGauge(t, reg))
}

func TestStockReconcileJobFailsOnReadError(t *testing.T) {
	job, err := NewStockReconcileJob(StockReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Journal:    &fakeJournal{err: errors.New("db down")},
		Reconciler: &fakeReconciler{},
	})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func mismatchGauge(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "mediconnect_stock_reconcile_mismatches" {
			continue
		}
		for _, metric := range family.GetMetric() {
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatal("mismatch gauge not exported")
	return 0
}
