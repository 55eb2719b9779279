package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestStatusTransitionTable(t *testing.T) {
	allowed := map[RequestStatus][]RequestStatus{
		RequestStatusCreated:        {RequestStatusApproved, RequestStatusRejected},
		RequestStatusApproved:       {RequestStatusPreparing, RequestStatusRejected},
		RequestStatusPreparing:      {RequestStatusOutForDelivery, RequestStatusRejected},
		RequestStatusOutForDelivery: {RequestStatusDelivered, RequestStatusRejected},
	}

	for _, from := range validRequestStatuses {
		for _, to := range validRequestStatuses {
			want := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					want = true
				}
			}
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestRequestStatusTerminal(t *testing.T) {
	assert.True(t, RequestStatusDelivered.IsTerminal())
	assert.True(t, RequestStatusRejected.IsTerminal())
	assert.False(t, RequestStatusCreated.IsTerminal())
	assert.False(t, RequestStatus("UNKNOWN").IsTerminal())
	assert.Empty(t, RequestStatusDelivered.AllowedTransitions())
}

func TestRequestStatusHoldingSet(t *testing.T) {
	for _, status := range validRequestStatuses {
		want := status == RequestStatusApproved || status == RequestStatusPreparing || status == RequestStatusOutForDelivery
		assert.Equalf(t, want, status.HoldsReservation(), "%s", status)
	}
	assert.ElementsMatch(t, []RequestStatus{RequestStatusApproved, RequestStatusPreparing, RequestStatusOutForDelivery}, HoldingRequestStatuses())
}

func TestReservationEffectFor(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		want     ReservationEffect
	}{
		{RequestStatusCreated, RequestStatusApproved, ReservationEffectReserve},
		{RequestStatusCreated, RequestStatusRejected, ReservationEffectNone},
		{RequestStatusApproved, RequestStatusPreparing, ReservationEffectNone},
		{RequestStatusPreparing, RequestStatusOutForDelivery, ReservationEffectNone},
		{RequestStatusOutForDelivery, RequestStatusDelivered, ReservationEffectConsume},
		{RequestStatusApproved, RequestStatusRejected, ReservationEffectRelease},
		{RequestStatusOutForDelivery, RequestStatusRejected, ReservationEffectRelease},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, ReservationEffectFor(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseRequestStatus(t *testing.T) {
	status, err := ParseRequestStatus("OUT_FOR_DELIVERY")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusOutForDelivery, status)

	_, err = ParseRequestStatus("out_for_delivery")
	require.Error(t, err)
}

func TestParseActorRole(t *testing.T) {
	role, err := ParseActorRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, ActorRoleAdmin, role)

	_, err = ParseActorRole("pharmacist")
	require.Error(t, err)
}
