package requests

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/mediconnect-backend/api/middleware"
	"github.com/angelmondragon/mediconnect-backend/api/responses"
	"github.com/angelmondragon/mediconnect-backend/api/validators"
	"github.com/angelmondragon/mediconnect-backend/internal/fulfillment"
	internalrequests "github.com/angelmondragon/mediconnect-backend/internal/requests"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/pagination"
	"github.com/google/uuid"
)

type createRequestBody struct {
	PatientID    string `json:"patient_id" validate:"required,uuid"`
	MedicationID string `json:"medication_id" validate:"required,uuid"`
	Qty          int    `json:"qty" validate:"gt=0"`
}

// transitionBody carries the target status and, optionally, the status the
// caller last observed. A stale "from" is answered with CONFLICT.
type transitionBody struct {
	Status string `json:"status" validate:"required"`
	From   string `json:"from,omitempty"`
}

// Create registers a new request in CREATED. Stock is not touched until approval.
func Create(svc fulfillment.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}

		var body createRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		req, err := svc.CreateRequest(ctx, fulfillment.CreateRequestInput{
			PatientID:    uuid.MustParse(body.PatientID),
			MedicationID: uuid.MustParse(body.MedicationID),
			Qty:          body.Qty,
			Actor:        actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalrequests.Summarize(*req))
	}
}

// List returns a page of requests, newest first. Patients only ever see their own.
func List(svc fulfillment.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := parseFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listPage(w, r, svc, filters, timeout, logg)
	}
}

// ListForPatient lists one patient's requests.
func ListForPatient(svc fulfillment.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := validators.ParseUUIDParam(r, "patientId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters.PatientID = &patientID
		listPage(w, r, svc, filters, timeout, logg)
	}
}

func listPage(w http.ResponseWriter, r *http.Request, svc fulfillment.Service, filters internalrequests.ListFilters, timeout time.Duration, logg *logger.Logger) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
		return
	}

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	list, err := svc.ListRequests(ctx, fulfillment.ListInput{
		Filters: filters,
		Pagination: pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		},
		Actor: actorFrom(r),
	})
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, list)
}

func Get(svc fulfillment.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		req, err := svc.GetRequest(ctx, requestID, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalrequests.Summarize(*req))
	}
}

// Transition moves a request to the status in the body.
func Transition(svc fulfillment.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transitionBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := parseStatus(body.Status, "status")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var from enums.RequestStatus
		if strings.TrimSpace(body.From) != "" {
			if from, err = parseStatus(body.From, "from"); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		req, err := svc.Transition(ctx, fulfillment.TransitionInput{
			RequestID:    requestID,
			ToStatus:     to,
			ExpectedFrom: from,
			Actor:        actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalrequests.Summarize(*req))
	}
}

// Delete removes a request and releases whatever reservation it still holds.
func Delete(svc fulfillment.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment service unavailable"))
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := svc.Delete(ctx, fulfillment.DeleteInput{RequestID: requestID, Actor: actorFrom(r)}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func actorFrom(r *http.Request) fulfillment.Actor {
	return fulfillment.Actor{
		ID:   middleware.ActorIDFromContext(r.Context()),
		Role: middleware.RoleFromContext(r.Context()),
	}
}

func parseFilters(r *http.Request) (internalrequests.ListFilters, error) {
	var filters internalrequests.ListFilters
	var err error
	if filters.PatientID, err = validators.ParseQueryUUID(r, "patient_id"); err != nil {
		return filters, err
	}
	if filters.MedicationID, err = validators.ParseQueryUUID(r, "medication_id"); err != nil {
		return filters, err
	}
	if filters.Status, err = validators.ParseQueryStatus(r, "status"); err != nil {
		return filters, err
	}
	return filters, nil
}

func parseStatus(raw, field string) (enums.RequestStatus, error) {
	status, err := enums.ParseRequestStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown status").WithDetails(map[string]any{"field": field})
	}
	return status, nil
}
