package medications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/mediconnect-backend/pkg/db"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
)

type stubOutbox struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestService(t *testing.T) (*gorm.DB, Service, *stubOutbox) {
	t.Helper()
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ledger, err := NewLedger(repo)
	require.NoError(t, err)
	pub := &stubOutbox{}
	svc, err := NewService(repo, ledger, dbpkg.NewFromConn(db), pub)
	require.NoError(t, err)
	return db, svc, pub
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	require.Error(t, err)
}

func TestServiceCreateRequiresAdmin(t *testing.T) {
	_, svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateMedicationInput{Code: "AMX", Name: "Amoxicillin", ActorID: "p-1", ActorRole: enums.ActorRolePatient})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeForbidden))

	_, err = svc.Create(context.Background(), CreateMedicationInput{Code: "AMX", Name: "Amoxicillin", ActorRole: enums.ActorRoleAdmin})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestServiceCreateAndDuplicateCode(t *testing.T) {
	_, svc, _ := newTestService(t)
	ctx := context.Background()
	input := CreateMedicationInput{Code: "IBU-400", Name: "Ibuprofen 400mg", InitialStock: 12, ActorID: "admin-1", ActorRole: enums.ActorRoleAdmin}

	med, err := svc.Create(ctx, input)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, med.ID)
	assert.Equal(t, 12, med.Stock)

	_, err = svc.Create(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)

	input.Code = "NEG"
	input.InitialStock = -1
	_, err = svc.Create(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestServiceGetMissing(t *testing.T) {
	_, svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestServiceAdjustStockEmitsEvent(t *testing.T) {
	db, svc, pub := newTestService(t)
	med := dbtest.MustCreateMedication(t, db, 3)

	updated, err := svc.AdjustStock(context.Background(), AdjustStockInput{
		MedicationID: med.ID,
		Delta:        9,
		ActorID:      "admin-1",
		ActorRole:    enums.ActorRoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, updated.Stock)

	require.Len(t, pub.events, 1)
	assert.Equal(t, enums.EventMedicationRestocked, pub.events[0].EventType)
	assert.Equal(t, med.ID, pub.events[0].AggregateID)

	movements, err := svc.Movements(context.Background(), med.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, enums.StockMovementAdjust, movements[0].Kind)
}

func TestServiceAdjustStockRollsBackWhenOutboxFails(t *testing.T) {
	db, svc, pub := newTestService(t)
	med := dbtest.MustCreateMedication(t, db, 3)
	pub.err = assert.AnError

	_, err := svc.AdjustStock(context.Background(), AdjustStockInput{
		MedicationID: med.ID,
		Delta:        5,
		ActorID:      "admin-1",
		ActorRole:    enums.ActorRoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, 3, dbtest.StockOf(t, db, med.ID))

	var count int64
	require.NoError(t, db.Model(&models.StockMovement{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceAdjustStockWithRealOutbox(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	ledger, err := NewLedger(repo)
	require.NoError(t, err)
	svc, err := NewService(repo, ledger, dbpkg.NewFromConn(db), outbox.NewService(outbox.NewRepository(db), nil))
	require.NoError(t, err)
	med := dbtest.MustCreateMedication(t, db, 1)

	_, err = svc.AdjustStock(context.Background(), AdjustStockInput{MedicationID: med.ID, Delta: 2, ActorID: "admin-1", ActorRole: enums.ActorRoleAdmin})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Where("aggregate_id = ?", med.ID).Find(&rows).Error)
	require.Len(t, rows, 1)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, "admin-1", envelope.Actor.ActorID)
	assert.JSONEq(t, `{"medication_id":"`+med.ID.String()+`","delta":2,"stock_after":3}`, string(envelope.Data))
}
