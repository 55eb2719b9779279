package fulfillment

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/mediconnect-backend/internal/medications"
	"github.com/angelmondragon/mediconnect-backend/internal/patients"
	"github.com/angelmondragon/mediconnect-backend/internal/requests"
	"github.com/angelmondragon/mediconnect-backend/pkg/config"
	dbpkg "github.com/angelmondragon/mediconnect-backend/pkg/db"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
)

var adminActor = Actor{ID: "admin-1", Role: enums.ActorRoleAdmin}

type harness struct {
	db      *gorm.DB
	svc     Service
	outbox  *outbox.Repository
	patient *models.Patient
}

type harnessOptions struct {
	wrapRequests func(requests.Repository) requests.Repository
	publisher    outboxPublisher
	cfg          config.FulfillmentConfig
}

func newHarness(t *testing.T, opts ...func(*harnessOptions)) *harness {
	t.Helper()
	options := harnessOptions{
		cfg: config.FulfillmentConfig{DeleteMaxAttempts: 3, DeleteRetryDelay: time.Millisecond},
	}
	for _, opt := range opts {
		opt(&options)
	}

	db := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "fulfillment-test", Output: io.Discard})

	var requestRepo requests.Repository = requests.NewRepository(db)
	if options.wrapRequests != nil {
		requestRepo = options.wrapRequests(requestRepo)
	}
	store, err := requests.NewStore(requestRepo)
	require.NoError(t, err)

	medRepo := medications.NewRepository(db)
	ledger, err := medications.NewLedger(medRepo)
	require.NoError(t, err)

	outboxRepo := outbox.NewRepository(db)
	publisher := options.publisher
	if publisher == nil {
		publisher = outbox.NewService(outboxRepo, logg)
	}

	svc, err := NewService(ServiceParams{
		Requests:    store,
		Medications: medRepo,
		Patients:    patients.NewRepository(db),
		Ledger:      ledger,
		Tx:          dbpkg.NewFromConn(db),
		Outbox:      publisher,
		Logger:      logg,
		Config:      options.cfg,
	})
	require.NoError(t, err)

	return &harness{
		db:      db,
		svc:     svc,
		outbox:  outboxRepo,
		patient: dbtest.MustCreatePatient(t, db),
	}
}

func (h *harness) createRequest(t *testing.T, med *models.Medication, qty int) *models.MedicationRequest {
	t.Helper()
	req, err := h.svc.CreateRequest(context.Background(), CreateRequestInput{
		PatientID:    h.patient.ID,
		MedicationID: med.ID,
		Qty:          qty,
		Actor:        adminActor,
	})
	require.NoError(t, err)
	return req
}

// advance walks the request through each status in order.
func (h *harness) advance(t *testing.T, id uuid.UUID, path ...enums.RequestStatus) {
	t.Helper()
	for _, status := range path {
		_, err := h.svc.Transition(context.Background(), TransitionInput{RequestID: id, ToStatus: status, Actor: adminActor})
		require.NoError(t, err, "transition to %s", status)
	}
}

func (h *harness) eventTypes(t *testing.T, aggregateID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	rows, err := h.outbox.ListForAggregate(h.db, aggregateID)
	require.NoError(t, err)
	types := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.EventType)
	}
	return types
}

func withRequestRepo(wrap func(requests.Repository) requests.Repository) func(*harnessOptions) {
	return func(o *harnessOptions) { o.wrapRequests = wrap }
}

// staleStatusRepository reports a fixed status on reads, imitating a caller
// whose read happened before a concurrent transition committed.
type staleStatusRepository struct {
	requests.Repository
	stale enums.RequestStatus
}

func (r *staleStatusRepository) WithTx(tx *gorm.DB) requests.Repository {
	return &staleStatusRepository{Repository: r.Repository.WithTx(tx), stale: r.stale}
}

func (r *staleStatusRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.MedicationRequest, error) {
	req, err := r.Repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Status = r.stale
	return req, nil
}

// flakyDeleteRepository fails the record delete a set number of times after
// the reservation release already ran in the same transaction.
type flakyDeleteRepository struct {
	requests.Repository
	failures *int32
}

func newFlakyDeleteRepository(failures int32) (*int32, func(requests.Repository) requests.Repository) {
	remaining := failures
	return &remaining, func(inner requests.Repository) requests.Repository {
		return &flakyDeleteRepository{Repository: inner, failures: &remaining}
	}
}

func (r *flakyDeleteRepository) WithTx(tx *gorm.DB) requests.Repository {
	return &flakyDeleteRepository{Repository: r.Repository.WithTx(tx), failures: r.failures}
}

func (r *flakyDeleteRepository) DeleteIfStatus(ctx context.Context, id uuid.UUID, status enums.RequestStatus) (bool, error) {
	if atomic.AddInt32(r.failures, -1) >= 0 {
		return false, errors.New("write tcp: connection reset by peer")
	}
	return r.Repository.DeleteIfStatus(ctx, id, status)
}

type failingPublisher struct{}

func (failingPublisher) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}
