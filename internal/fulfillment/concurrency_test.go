package fulfillment

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/mediconnect-backend/pkg/db/dbtest"
	"github.com/angelmondragon/mediconnect-backend/pkg/db/models"
	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
)

func TestConcurrentApprovalsOfOneRequestReserveOnce(t *testing.T) {
	h := newHarness(t)
	med := dbtest.MustCreateMedication(t, h.db, 10)
	req := h.createRequest(t, med, 4)

	var succeeded, conflicted int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := h.svc.Transition(context.Background(), TransitionInput{
				RequestID:    req.ID,
				ToStatus:     enums.RequestStatusApproved,
				ExpectedFrom: enums.RequestStatusCreated,
				Actor:        adminActor,
			})
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case pkgerrors.Is(err, pkgerrors.CodeConflict):
				atomic.AddInt32(&conflicted, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, succeeded)
	assert.EqualValues(t, 7, conflicted)
	assert.Equal(t, 6, dbtest.StockOf(t, h.db, med.ID))
}

func TestConcurrentLifecyclesConserveStock(t *testing.T) {
	const initial = 15
	h := newHarness(t)
	med := dbtest.MustCreateMedication(t, h.db, initial)

	reqs := make([]*models.MedicationRequest, 12)
	for i := range reqs {
		reqs[i] = h.createRequest(t, med, i%3+1)
	}

	var g errgroup.Group
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			ctx := context.Background()
			move := func(to enums.RequestStatus) error {
				_, err := h.svc.Transition(ctx, TransitionInput{RequestID: req.ID, ToStatus: to, Actor: adminActor})
				return err
			}
			if err := move(enums.RequestStatusApproved); err != nil {
				if pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) {
					return nil
				}
				return err
			}
			switch i % 3 {
			case 0:
				return move(enums.RequestStatusRejected)
			case 1:
				for _, to := range []enums.RequestStatus{enums.RequestStatusPreparing, enums.RequestStatusOutForDelivery, enums.RequestStatusDelivered} {
					if err := move(to); err != nil {
						return err
					}
				}
				return nil
			default:
				if err := move(enums.RequestStatusPreparing); err != nil {
					return err
				}
				return h.svc.Delete(ctx, DeleteInput{RequestID: req.ID, Actor: adminActor})
			}
		})
	}
	require.NoError(t, g.Wait())

	stock := dbtest.StockOf(t, h.db, med.ID)
	assert.GreaterOrEqual(t, stock, 0)

	rec, err := h.svc.Reconcile(context.Background(), med.ID)
	require.NoError(t, err)
	assert.Equal(t, initial, rec.Total, "stock %d held %d delivered %d", rec.Stock, rec.Held, rec.Delivered)
	assert.Zero(t, rec.Held, "every lifecycle ended outside the holding set")
}
