package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/orderflow/internal/checkout"
)

func newSession(id string) *checkout.Session {
	now := time.Now().UTC()
	return &checkout.Session{
		ID:        id,
		UserID:    "u1",
		Subtotal:  100,
		Total:     100,
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
}

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newSession("s1")
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)

	// Deleting again is not an error.
	assert.NoError(t, store.Delete(ctx, "s1"))
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, newSession("s1")))

	a, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	a.Subtotal = 999

	b, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.InDelta(t, 100, b.Subtotal, 1e-9, "mutating a read result must not leak into the store")
}

func TestMemoryStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, newSession("s1")))

	first, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	second, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	first.Discount = 10
	require.NoError(t, store.CompareAndSwap(ctx, first))
	assert.Equal(t, int64(1), first.Version, "version bumps on successful swap")

	// The second reader raced and lost; its version is stale.
	second.Discount = 20
	assert.ErrorIs(t, store.CompareAndSwap(ctx, second), checkout.ErrVersionConflict)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.InDelta(t, 10, got.Discount, 1e-9)
}

func TestMemoryStore_CompareAndSwapMissing(t *testing.T) {
	store := NewMemoryStore()
	err := store.CompareAndSwap(context.Background(), newSession("ghost"))
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestMemoryStore_LongDeadSessionsPurgedOnAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := newSession("s1")
	s.ExpiresAt = time.Now().Add(-2 * retentionGrace)
	require.NoError(t, store.Put(ctx, s))

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
}

func TestMemoryStore_RecentlyExpiredStillReadable(t *testing.T) {
	// Within the grace window the entry survives so the service layer can
	// answer "expired" rather than "not found".
	ctx := context.Background()
	store := NewMemoryStore()

	s := newSession("s1")
	s.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.Expired(time.Now()))
}
