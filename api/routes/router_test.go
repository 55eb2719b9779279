package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/mediconnect-backend/api/middleware"
	"github.com/angelmondragon/mediconnect-backend/internal/fulfillment"
	"github.com/angelmondragon/mediconnect-backend/internal/medications"
	"github.com/angelmondragon/mediconnect-backend/internal/patients"
	"github.com/angelmondragon/mediconnect-backend/internal/requests"
	"github.com/angelmondragon/mediconnect-backend/pkg/config"
	dbpkg "github.com/angelmondragon/mediconnect-backend/pkg/db"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/metrics"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"github.com/angelmondragon/mediconnect-backend/pkg/types"
)

type apiHarness struct {
	db      *gorm.DB
	handler http.Handler
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	db := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "api-test", Output: io.Discard})
	reg := prometheus.NewRegistry()

	cfg := &config.Config{
		App:         config.AppConfig{Env: "test"},
		Fulfillment: config.FulfillmentConfig{DeleteMaxAttempts: 3, DeleteRetryDelay: time.Millisecond, OperationTimeout: 5 * time.Second},
		RateLimit:   config.RateLimitConfig{WriteLimit: 100, WriteWindow: time.Minute},
	}

	tx := dbpkg.NewFromConn(db)
	medRepo := medications.NewRepository(db)
	ledger, err := medications.NewLedger(medRepo)
	require.NoError(t, err)
	store, err := requests.NewStore(requests.NewRepository(db))
	require.NoError(t, err)
	outboxSvc := outbox.NewService(outbox.NewRepository(db), logg)

	fulfillmentSvc, err := fulfillment.NewService(fulfillment.ServiceParams{
		Requests:    store,
		Medications: medRepo,
		Patients:    patients.NewRepository(db),
		Ledger:      ledger,
		Tx:          tx,
		Outbox:      outboxSvc,
		Logger:      logg,
		Metrics:     metrics.NewFulfillmentMetrics(reg),
		Config:      cfg.Fulfillment,
	})
	require.NoError(t, err)
	medicationSvc, err := medications.NewService(medRepo, ledger, tx, outboxSvc)
	require.NoError(t, err)
	patientSvc, err := patients.NewService(patients.NewRepository(db))
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, tx, nil, reg, Services{
		Fulfillment: fulfillmentSvc,
		Medications: medicationSvc,
		Patients:    patientSvc,
	})
	return &apiHarness{db: db, handler: handler}
}

func (h *apiHarness) do(t *testing.T, method, path, actorID string, role enums.ActorRole, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if actorID != "" {
		req.Header.Set(middleware.ActorIDHeader, actorID)
		req.Header.Set(middleware.ActorRoleHeader, string(role))
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) admin(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	return h.do(t, method, path, "admin-1", enums.ActorRoleAdmin, body)
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Error.Code
}

func (h *apiHarness) createRequest(t *testing.T, patient *models.Patient, med *models.Medication, qty int) requests.RequestSummary {
	t.Helper()
	body := fmt.Sprintf(`{"patient_id":%q,"medication_id":%q,"qty":%d}`, patient.ID, med.ID, qty)
	rec := h.admin(t, http.MethodPost, "/api/v1/requests", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[requests.RequestSummary](t, rec)
}

func transitionPath(id fmt.Stringer) string {
	return "/api/v1/requests/" + id.String() + "/transition"
}

func TestHealthAndMetrics(t *testing.T) {
	h := newAPIHarness(t)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/live", "", "", "").Code)

	ready := h.do(t, http.MethodGet, "/health/ready", "", "", "")
	require.Equal(t, http.StatusOK, ready.Code, ready.Body.String())
	checks := decodeData[map[string]any](t, ready)["checks"].(map[string]any)
	assert.Equal(t, "up", checks["db"])

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/metrics", "", "", "").Code)
}

func TestAPIRequiresActor(t *testing.T) {
	h := newAPIHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/requests", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, rec))
}

func TestPatientCannotManageCatalog(t *testing.T) {
	h := newAPIHarness(t)
	patient := dbtest.MustCreatePatient(t, h.db)

	rec := h.do(t, http.MethodPost, "/api/v1/medications", patient.ID.String(), enums.ActorRolePatient, `{"code":"IBU","name":"Ibuprofen","initial_stock":5}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	patient := dbtest.MustCreatePatient(t, h.db)

	rec := h.admin(t, http.MethodPost, "/api/v1/medications", `{"code":"AMOX-500","name":"Amoxicillin","initial_stock":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	med := decodeData[models.Medication](t, rec)

	created := h.createRequest(t, patient, &med, 3)
	assert.Equal(t, enums.RequestStatusCreated, created.Status)
	assert.Equal(t, 10, dbtest.StockOf(t, h.db, med.ID))

	rec = h.admin(t, http.MethodPost, transitionPath(created.ID), `{"status":"APPROVED"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decodeData[requests.RequestSummary](t, rec)
	assert.Equal(t, enums.RequestStatusApproved, approved.Status)
	assert.True(t, approved.HoldsStock)
	assert.Equal(t, 7, dbtest.StockOf(t, h.db, med.ID))

	// a caller still believing the request is CREATED loses
	rec = h.admin(t, http.MethodPost, transitionPath(created.ID), `{"status":"REJECTED","from":"CREATED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, rec))
	assert.Equal(t, 7, dbtest.StockOf(t, h.db, med.ID))

	rec = h.admin(t, http.MethodPost, transitionPath(created.ID), `{"status":"DELIVERED"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInvalidTransition), errorCode(t, rec))

	rec = h.admin(t, http.MethodDelete, "/api/v1/requests/"+created.ID.String(), "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, 10, dbtest.StockOf(t, h.db, med.ID))

	rec = h.admin(t, http.MethodGet, "/api/v1/requests/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApprovalBeyondStockIsRejected(t *testing.T) {
	h := newAPIHarness(t)
	patient := dbtest.MustCreatePatient(t, h.db)
	med := dbtest.MustCreateMedication(t, h.db, 2)

	created := h.createRequest(t, patient, med, 5)
	rec := h.admin(t, http.MethodPost, transitionPath(created.ID), `{"status":"APPROVED"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), errorCode(t, rec))
	assert.Equal(t, 2, dbtest.StockOf(t, h.db, med.ID))
}

func TestPatientSeesOnlyOwnRequests(t *testing.T) {
	h := newAPIHarness(t)
	mine := dbtest.MustCreatePatient(t, h.db)
	other := dbtest.MustCreatePatient(t, h.db)
	med := dbtest.MustCreateMedication(t, h.db, 10)
	h.createRequest(t, mine, med, 1)
	h.createRequest(t, other, med, 1)

	rec := h.do(t, http.MethodGet, "/api/v1/requests", mine.ID.String(), enums.ActorRolePatient, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeData[requests.RequestList](t, rec)
	require.Len(t, list.Requests, 1)
	assert.Equal(t, mine.ID, list.Requests[0].PatientID)

	rec = h.do(t, http.MethodGet, "/api/v1/patients/"+other.ID.String()+"/requests", mine.ID.String(), enums.ActorRolePatient, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdjustAndReconcile(t *testing.T) {
	h := newAPIHarness(t)
	patient := dbtest.MustCreatePatient(t, h.db)
	med := dbtest.MustCreateMedication(t, h.db, 4)
	created := h.createRequest(t, patient, med, 3)
	require.Equal(t, http.StatusOK, h.admin(t, http.MethodPost, transitionPath(created.ID), `{"status":"APPROVED"}`).Code)

	rec := h.admin(t, http.MethodPost, "/api/v1/medications/"+med.ID.String()+"/adjust", `{"delta":6}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 7, decodeData[models.Medication](t, rec).Stock)

	rec = h.admin(t, http.MethodGet, "/api/v1/medications/"+med.ID.String()+"/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snapshot := decodeData[fulfillment.Reconciliation](t, rec)
	assert.Equal(t, 7, snapshot.Stock)
	assert.Equal(t, 3, snapshot.Held)
	assert.Equal(t, 10, snapshot.Total)

	rec = h.admin(t, http.MethodGet, "/api/v1/medications/"+med.ID.String()+"/movements", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeData[[]models.StockMovement](t, rec), 2)
}
