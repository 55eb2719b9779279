package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mediconnect-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "writes:admin-1", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "call %d", i+1)
		assert.EqualValues(t, i+1, count)
	}
	assert.Equal(t, map[string]int64{"mc:rate_limit:writes:admin-1": 60000}, mock.expiries, "expiry set once, on the first hit")

	allowed, _, err := client.FixedWindowAllow(ctx, "writes:admin-2", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	_, _, err = client.FixedWindowAllow(ctx, "writes:admin-1", 2, 0)
	assert.Error(t, err)
}

func TestCompareAndDelete(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("cron-worker")

	ok, err := client.SetNX(ctx, key, "owner-a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	removed, err := client.CompareAndDelete(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, removed)
	value, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "owner-a", value)

	removed, err = client.CompareAndDelete(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, removed)
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestIdempotencyReservation(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.IdempotencyKey("POST /api/v1/requests", "admin-1:abc")

	ok, err := client.SetNX(ctx, key, `{"status":201}`, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.SetNX(ctx, key, `{"status":201}`, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate reservation loses")

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	assert.Error(t, client.Ping(ctx))
	_, _, err := client.FixedWindowAllow(ctx, "writes", 1, time.Second)
	assert.Error(t, err)
	_, err = client.CompareAndDelete(ctx, "k", "v")
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "mc:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "mc:rate_limit:scope", client.RateLimitKey("scope"))
	assert.Equal(t, "mc:lock:cron", client.LockKey("cron"))
	assert.Equal(t, "mc:idempotency:id", client.IdempotencyKey("", "id"), "empty parts are skipped")
}

func TestOptionsFromConfigRequiresEndpoint(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
}

type mockCmdable struct {
	data     map[string]string
	counters map[string]int64
	expiries map[string]int64
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:     map[string]string{},
		counters: map[string]int64{},
		expiries: map[string]int64{},
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Eval emulates the two scripts the client runs.
func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case fixedWindowScript:
		m.counters[key]++
		if m.counters[key] == 1 {
			m.expiries[key] = args[0].(int64)
		}
		return redis.NewCmdResult(m.counters[key], nil)
	case compareAndDeleteScript:
		if v, ok := m.data[key]; ok && v == args[0] {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	default:
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
}
