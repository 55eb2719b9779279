package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mediconnect-backend/pkg/redis"
)

// Deduper remembers which outbox events one consumer has claimed so
// Pub/Sub redeliveries are handled once. A claim is a SETNX of
// mc:idempotency:evt:<consumer>:<event_id> holding the claim time.
type Deduper struct {
	store    redis.IdempotencyStore
	consumer string
	ttl      time.Duration
	now      func() time.Time
}

func NewDeduper(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Deduper, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case consumer == "":
		return nil, errors.New("consumer name is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}
	return &Deduper{store: store, consumer: consumer, ttl: ttl, now: time.Now}, nil
}

// Claim reports whether this is the first delivery of eventID. A false
// result means another delivery already claimed it within the TTL.
func (d *Deduper) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return d.store.SetNX(ctx, d.key(eventID), d.now().UTC().Format(time.RFC3339), d.ttl)
}

// Release drops a claim so a failed event can be handled on redelivery.
func (d *Deduper) Release(ctx context.Context, eventID uuid.UUID) error {
	if eventID == uuid.Nil {
		return errors.New("event id is required")
	}
	return d.store.Del(ctx, d.key(eventID))
}

func (d *Deduper) key(eventID uuid.UUID) string {
	return d.store.IdempotencyKey("evt:"+d.consumer, eventID.String())
}
