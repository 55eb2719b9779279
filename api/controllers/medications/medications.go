package medications

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/mediconnect-backend/api/middleware"
	"github.com/angelmondragon/mediconnect-backend/api/responses"
	"github.com/angelmondragon/mediconnect-backend/api/validators"
	"github.com/angelmondragon/mediconnect-backend/internal/fulfillment"
	internalmedications "github.com/angelmondragon/mediconnect-backend/internal/medications"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
)

const (
	defaultMovementsLimit = 50
	maxMovementsLimit     = 500
)

type createMedicationBody struct {
	Code         string `json:"code" validate:"required,max=64"`
	Name         string `json:"name" validate:"required,max=255"`
	InitialStock int    `json:"initial_stock" validate:"gte=0"`
}

type adjustStockBody struct {
	Delta int `json:"delta" validate:"ne=0"`
}

func Create(svc internalmedications.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medications service unavailable"))
			return
		}

		var body createMedicationBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		med, err := svc.Create(ctx, internalmedications.CreateMedicationInput{
			Code:         validators.NormalizeCode(body.Code, 64),
			Name:         validators.SanitizeString(body.Name, 255),
			InitialStock: body.InitialStock,
			ActorID:      middleware.ActorIDFromContext(r.Context()),
			ActorRole:    middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, med)
	}
}

func List(svc internalmedications.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medications service unavailable"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		meds, err := svc.List(ctx)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, meds)
	}
}

func Get(svc internalmedications.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medications service unavailable"))
			return
		}
		medicationID, err := validators.ParseUUIDParam(r, "medicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		med, err := svc.Get(ctx, medicationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, med)
	}
}

// Adjust applies an administrative restock or write-off.
func Adjust(svc internalmedications.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medications service unavailable"))
			return
		}
		medicationID, err := validators.ParseUUIDParam(r, "medicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body adjustStockBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		med, err := svc.AdjustStock(ctx, internalmedications.AdjustStockInput{
			MedicationID: medicationID,
			Delta:        body.Delta,
			ActorID:      middleware.ActorIDFromContext(r.Context()),
			ActorRole:    middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, med)
	}
}

// Movements returns the stock journal for one medication, newest first.
func Movements(svc internalmedications.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "medications service unavailable"))
			return
		}
		medicationID, err := validators.ParseUUIDParam(r, "medicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultMovementsLimit, 1, maxMovementsLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		rows, err := svc.Movements(ctx, medicationID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// Reconcile reports stock, held and delivered units for one medication.
func Reconcile(svc fulfillment.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		medicationID, err := validators.ParseUUIDParam(r, "medicationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		rec, err := svc.Reconcile(ctx, medicationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rec)
	}
}
