package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
)

type sampleBody struct {
	Qty    int    `json:"qty" validate:"gt=0"`
	Status string `json:"status" validate:"required"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"qty":0}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Equal(t, "must be greater than 0", details["qty"])
	assert.Equal(t, "is required", details["status"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"qty":1,"status":"x","extra":true}`))
	var body sampleBody
	assert.True(t, pkgerrors.Is(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("requestId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "requestId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "medicationId")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQueryFilters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?status=approved&limit=500", nil)

	status, err := ParseQueryStatus(req, "status")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, enums.RequestStatusApproved, *status)

	_, err = ParseQueryInt(req, "limit", 50, 1, 200)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	missing, err := ParseQueryUUID(req, "patientId")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Ana María López", SanitizeString("  Ana \t María\n López ", 0))
	assert.Equal(t, "abc", SanitizeString("a\x00b\x07c", 0))
	assert.Equal(t, "Jos", SanitizeString("José", 4), "never splits a rune")
	assert.Equal(t, "", SanitizeString("   ", 10))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AMX-500", NormalizeCode(" amx  500 ", 64))
	assert.Equal(t, "IBU", NormalizeCode("ibu", 64))
}
