package distributed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("LIVEGRID_TEST_REDIS")
	if addr == "" {
		t.Skip("LIVEGRID_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLock_SingleHolder(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "livegrid:test:lock:" + uuid.New().String()

	first := NewLock(client, key, 5*time.Second)
	second := NewLock(client, key, 5*time.Second)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, second.Release(ctx), ErrNotHeld)
	require.NoError(t, first.Release(ctx))

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release(ctx))
}

func TestLock_AcquireTimesOut(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "livegrid:test:lock:" + uuid.New().String()

	holder := NewLock(client, key, 5*time.Second)
	require.NoError(t, holder.Acquire(ctx, time.Second))
	defer holder.Release(ctx)

	waiter := NewLock(client, key, 5*time.Second)
	waiter.pollInterval = 10 * time.Millisecond
	err := waiter.Acquire(ctx, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	key := "livegrid:test:lock:" + uuid.New().String()

	crashed := NewLock(client, key, 100*time.Millisecond)
	ok, err := crashed.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	next := NewLock(client, key, time.Second)
	next.pollInterval = 20 * time.Millisecond
	require.NoError(t, next.Acquire(ctx, 2*time.Second))
	require.NoError(t, next.Release(ctx))
}
