package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/liquifund/liquidity/internal/testutil/dblock"
	"github.com/liquifund/liquidity/internal/testutil/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}

func TestScopedKey(t *testing.T) {
	assert.Equal(t, "u1:abc", ScopedKey("u1", "abc"))
	assert.Equal(t, "anon:abc", ScopedKey("", "abc"))
	assert.NotEqual(t, ScopedKey("u1", "abc"), ScopedKey("u2", "abc"))
}

func TestStoreLifecycle(t *testing.T) {
	pool := pgtest.Setup(t)
	store := NewStore(nil, pool, time.Hour)
	ctx := context.Background()

	_, err := store.Lookup(ctx, "u1:key", "hash")
	require.ErrorIs(t, err, ErrNotFound)

	reserved, err := store.Reserve(ctx, "u1:key", "hash", "POST", "/v1/withdrawals")
	require.NoError(t, err)
	require.True(t, reserved)

	again, err := store.Reserve(ctx, "u1:key", "hash", "POST", "/v1/withdrawals")
	require.NoError(t, err)
	assert.False(t, again)

	_, err = store.Lookup(ctx, "u1:key", "hash")
	assert.ErrorIs(t, err, ErrInProgress)

	_, err = store.Finalize(ctx, "u1:key", "hash", 201, []byte(`{"id":"w1"}`), "application/json")
	require.NoError(t, err)

	rec, err := store.Lookup(ctx, "u1:key", "hash")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)
	assert.JSONEq(t, `{"id":"w1"}`, string(rec.Body))
	assert.Equal(t, "postgres", rec.ServedBy)

	_, err = store.Lookup(ctx, "u1:key", "other-hash")
	assert.ErrorIs(t, err, ErrHashMismatch)
}

func TestStoreReleaseAllowsRetry(t *testing.T) {
	pool := pgtest.Setup(t)
	store := NewStore(nil, pool, time.Hour)
	ctx := context.Background()

	reserved, err := store.Reserve(ctx, "u1:retry", "hash", "POST", "/v1/rentals")
	require.NoError(t, err)
	require.True(t, reserved)
	require.NoError(t, store.Release(ctx, "u1:retry", "hash"))

	reserved, err = store.Reserve(ctx, "u1:retry", "hash", "POST", "/v1/rentals")
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestStorePurge(t *testing.T) {
	pool := pgtest.Setup(t)
	store := NewStore(nil, pool, time.Hour)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "u1:old", "hash", "POST", "/v1/rentals")
	require.NoError(t, err)

	n, err := store.Purge(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.Purge(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWaitForCompletionHonoursContext(t *testing.T) {
	pool := pgtest.Setup(t)
	store := NewStore(nil, pool, time.Hour)

	_, err := store.Reserve(context.Background(), "u1:slow", "hash", "POST", "/v1/rentals")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = store.WaitForCompletion(ctx, "u1:slow", "hash")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
