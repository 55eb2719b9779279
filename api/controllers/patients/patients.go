package patients

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/mediconnect-backend/api/middleware"
	"github.com/angelmondragon/mediconnect-backend/api/responses"
	"github.com/angelmondragon/mediconnect-backend/api/validators"
	internalpatients "github.com/angelmondragon/mediconnect-backend/internal/patients"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
)

type createPatientBody struct {
	IDNumber string `json:"id_number" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=255"`
}

func Create(svc internalpatients.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "patients service unavailable"))
			return
		}

		var body createPatientBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		patient, err := svc.Create(ctx, internalpatients.CreatePatientInput{
			IDNumber:  validators.SanitizeString(body.IDNumber, 64),
			Name:      validators.SanitizeString(body.Name, 255),
			ActorID:   middleware.ActorIDFromContext(r.Context()),
			ActorRole: middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, patient)
	}
}

func Get(svc internalpatients.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "patients service unavailable"))
			return
		}
		patientID, err := validators.ParseUUIDParam(r, "patientId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		patient, err := svc.Get(ctx, patientID, middleware.ActorIDFromContext(r.Context()), middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, patient)
	}
}
