package enums

import "fmt"

// RequestStatus tracks the fulfillment lifecycle of a medication request.
type RequestStatus string

const (
	RequestStatusCreated        RequestStatus = "CREATED"
	RequestStatusApproved       RequestStatus = "APPROVED"
	RequestStatusPreparing      RequestStatus = "PREPARING"
	RequestStatusOutForDelivery RequestStatus = "OUT_FOR_DELIVERY"
	RequestStatusDelivered      RequestStatus = "DELIVERED"
	RequestStatusRejected       RequestStatus = "REJECTED"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusCreated,
	RequestStatusApproved,
	RequestStatusPreparing,
	RequestStatusOutForDelivery,
	RequestStatusDelivered,
	RequestStatusRejected,
}

// requestTransitions is the complete table of allowed moves. Statuses with an
// empty set are terminal.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusCreated:        {RequestStatusApproved, RequestStatusRejected},
	RequestStatusApproved:       {RequestStatusPreparing, RequestStatusRejected},
	RequestStatusPreparing:      {RequestStatusOutForDelivery, RequestStatusRejected},
	RequestStatusOutForDelivery: {RequestStatusDelivered, RequestStatusRejected},
	RequestStatusDelivered:      {},
	RequestStatusRejected:       {},
}

// holdingStatuses are the statuses in which the request's quantity is
// reserved against medication stock.
var holdingStatuses = map[RequestStatus]struct{}{
	RequestStatusApproved:       {},
	RequestStatusPreparing:      {},
	RequestStatusOutForDelivery: {},
}

// String implements fmt.Stringer.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RequestStatus.
func (s RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRequestStatus converts raw input into a RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, candidate := range requestTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the targets reachable from s.
func (s RequestStatus) AllowedTransitions() []RequestStatus {
	targets := requestTransitions[s]
	out := make([]RequestStatus, len(targets))
	copy(out, targets)
	return out
}

// HoldsReservation reports whether s is in the holding set.
func (s RequestStatus) HoldsReservation() bool {
	_, ok := holdingStatuses[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s RequestStatus) IsTerminal() bool {
	return s.IsValid() && len(requestTransitions[s]) == 0
}

// HoldingRequestStatuses lists the holding set, used for queries.
func HoldingRequestStatuses() []RequestStatus {
	return []RequestStatus{
		RequestStatusApproved,
		RequestStatusPreparing,
		RequestStatusOutForDelivery,
	}
}

// ReservationEffect is the ledger side effect attached to a transition.
type ReservationEffect string

const (
	ReservationEffectNone    ReservationEffect = "none"
	ReservationEffectReserve ReservationEffect = "reserve"
	ReservationEffectRelease ReservationEffect = "release"
	// ReservationEffectConsume marks delivery: the reserved units left the
	// shelf, so stock is not credited back.
	ReservationEffectConsume ReservationEffect = "consume"
)

// ReservationEffectFor derives the ledger side effect of moving from one
// status to another.
func ReservationEffectFor(from, to RequestStatus) ReservationEffect {
	switch {
	case !from.HoldsReservation() && to.HoldsReservation():
		return ReservationEffectReserve
	case from.HoldsReservation() && to == RequestStatusRejected:
		return ReservationEffectRelease
	case from.HoldsReservation() && to == RequestStatusDelivered:
		return ReservationEffectConsume
	default:
		return ReservationEffectNone
	}
}
