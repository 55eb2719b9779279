package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	keys     map[string]any
	ttls     map[string]time.Duration
	setNXErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, _ := f.keys[key].(string)
	return v, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.setNXErr != nil {
		return false, f.setNXErr
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = value
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "mc:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestNewDeduperValidates(t *testing.T) {
	_, err := NewDeduper(nil, "stockwatch", time.Hour)
	assert.Error(t, err)
	_, err = NewDeduper(newFakeStore(), "", time.Hour)
	assert.Error(t, err)
	_, err = NewDeduper(newFakeStore(), "stockwatch", 0)
	assert.Error(t, err)
}

func TestClaimOncePerEvent(t *testing.T) {
	store := newFakeStore()
	deduper, err := NewDeduper(store, "stockwatch", 72*time.Hour)
	require.NoError(t, err)
	deduper.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	eventID := uuid.New()
	first, err := deduper.Claim(context.Background(), eventID)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := deduper.Claim(context.Background(), eventID)
	require.NoError(t, err)
	assert.False(t, again)

	key := "mc:idempotency:evt:stockwatch:" + eventID.String()
	assert.Equal(t, "2026-10-19T12:00:00Z", store.keys[key])
	assert.Equal(t, 72*time.Hour, store.ttls[key])
}

func TestClaimsAreScopedPerConsumer(t *testing.T) {
	store := newFakeStore()
	a, err := NewDeduper(store, "stockwatch", time.Hour)
	require.NoError(t, err)
	b, err := NewDeduper(store, "audit", time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	first, err := a.Claim(context.Background(), eventID)
	require.NoError(t, err)
	other, err := b.Claim(context.Background(), eventID)
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, other)
}

func TestReleaseAllowsReclaim(t *testing.T) {
	deduper, err := NewDeduper(newFakeStore(), "stockwatch", time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	_, err = deduper.Claim(context.Background(), eventID)
	require.NoError(t, err)
	require.NoError(t, deduper.Release(context.Background(), eventID))

	again, err := deduper.Claim(context.Background(), eventID)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestClaimErrors(t *testing.T) {
	store := newFakeStore()
	store.setNXErr = errors.New("redis: connection refused")
	deduper, err := NewDeduper(store, "stockwatch", time.Hour)
	require.NoError(t, err)

	_, err = deduper.Claim(context.Background(), uuid.New())
	assert.Error(t, err)
	_, err = deduper.Claim(context.Background(), uuid.Nil)
	assert.Error(t, err)
	assert.Error(t, deduper.Release(context.Background(), uuid.Nil))
}
