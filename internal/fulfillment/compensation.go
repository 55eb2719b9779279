package fulfillment

import (
	"context"
	"time"

	"github.com/angelmondragon/mediconnect-backend/internal/medications"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox"
	"github.com/angelmondragon/mediconnect-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Delete removes a request, first returning any reservation it still holds.
// Release, delete and the outbox event commit together, so an attempt that
// fails leaves nothing applied and the next attempt re-derives the
// reservation from whatever status is then current. Transient failures are
// retried a bounded number of times before DELETION_FAILED is returned.
func (s *service) Delete(ctx context.Context, input DeleteInput) (err error) {
	defer s.observe(operationDelete, time.Now(), &err)

	if err := input.Actor.validate(); err != nil {
		return err
	}
	if input.RequestID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}

	logCtx := s.logg.WithMedicationRequestID(ctx, input.RequestID.String())
	var attemptErrs error
	for attempt := 1; attempt <= s.cfg.DeleteMaxAttempts; attempt++ {
		released, err := s.deleteOnce(ctx, input)
		if err == nil {
			if released {
				s.metrics.IncLedgerEffect(string(enums.ReservationEffectRelease))
			}
			s.logg.Info(s.logg.WithField(logCtx, "released_reservation", released), "medication request deleted")
			return nil
		}
		if !retryableDeleteError(err) {
			return err
		}

		attemptErrs = multierr.Append(attemptErrs, err)
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		}), "delete attempt failed")

		if attempt < s.cfg.DeleteMaxAttempts {
			if waitErr := sleepContext(ctx, s.cfg.DeleteRetryDelay*time.Duration(attempt)); waitErr != nil {
				attemptErrs = multierr.Append(attemptErrs, waitErr)
				break
			}
		}
	}

	return pkgerrors.Wrap(pkgerrors.CodeDeletionFailed, attemptErrs, "request could not be deleted").
		WithDetails(map[string]any{
			"requestId": input.RequestID.String(),
			"attempts":  len(multierr.Errors(attemptErrs)),
		})
}

func (s *service) deleteOnce(ctx context.Context, input DeleteInput) (bool, error) {
	released := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.requests.WithTx(tx)
		req, err := store.Find(ctx, input.RequestID)
		if err != nil {
			return err
		}
		if !input.Actor.mayAccess(req.PatientID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another patient")
		}

		lastStatus := req.Status
		var reservation *medications.StockResult
		if lastStatus.HoldsReservation() {
			reservation, err = s.ledger.Release(ctx, tx, medications.StockChange{
				MedicationID: req.MedicationID,
				Qty:          req.Qty,
				RequestID:    &req.ID,
				ActorID:      input.Actor.ID,
			})
			if err != nil {
				return err
			}
		}

		// Guarded on the status read above: a concurrent transition out of the
		// holding set would otherwise release the same units a second time.
		if err := store.DeleteIfStatus(ctx, req.ID, lastStatus); err != nil {
			return err
		}

		if reservation != nil {
			if err := s.emitReservation(ctx, tx, enums.EventReservationReleased, req, reservation, "deleted", input.Actor); err != nil {
				return err
			}
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventRequestDeleted,
			AggregateType: enums.AggregateMedicationRequest,
			AggregateID:   req.ID,
			Actor:         input.Actor.ref(),
			Data: payloads.RequestDeletedEvent{
				RequestID:           req.ID,
				PatientID:           req.PatientID,
				MedicationID:        req.MedicationID,
				LastStatus:          lastStatus,
				ReleasedReservation: reservation != nil,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit request deleted")
		}
		released = reservation != nil
		return nil
	})
	return released, err
}

// retryableDeleteError separates transient storage trouble and lost races
// from domain outcomes, which are returned to the caller as they are.
func retryableDeleteError(err error) bool {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeConflict, pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
