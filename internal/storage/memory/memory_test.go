package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/session"
)

func item(id int64, qty int) cart.LineItem {
	return cart.LineItem{ProductID: id, Name: "p", Price: decimal.NewFromInt(100), Quantity: qty}
}

func TestCartStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewCartStore(time.Hour)

	c, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	require.NoError(t, s.Add(ctx, "s1", item(1, 1)))
	require.NoError(t, s.Add(ctx, "s1", item(2, 1)))
	require.NoError(t, s.Add(ctx, "s1", item(1, 2)))
	require.NoError(t, s.SetQuantity(ctx, "s1", 2, 5))

	c, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 5, c.Items[1].Quantity)

	require.NoError(t, s.Remove(ctx, "s1", 1))
	c, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)

	// Sessions are isolated.
	other, err := s.Get(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())

	require.NoError(t, s.Clear(ctx, "s1"))
	require.NoError(t, s.Clear(ctx, "s1"))
	c, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestCartStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewCartStore(time.Hour)
	require.NoError(t, s.Add(ctx, "s1", item(1, 1)))

	c, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	c.Items[0].Quantity = 99

	again, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity)
}

func TestCartStore_AddInvalidQuantity(t *testing.T) {
	ctx := context.Background()
	s := NewCartStore(time.Hour)

	require.ErrorIs(t, s.Add(ctx, "s1", item(1, 0)), cart.ErrInvalidQuantity)
	c, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestCartStore_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewCartStore(time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Add(ctx, "idle", item(1, 1)))
	require.NoError(t, s.Add(ctx, "busy", item(1, 1)))

	now = now.Add(50 * time.Minute)
	require.NoError(t, s.SetQuantity(ctx, "busy", 1, 2))

	now = now.Add(20 * time.Minute)

	c, err := s.Get(ctx, "idle")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	c, err = s.Get(ctx, "busy")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)

	// An expired cart starts over instead of merging.
	require.NoError(t, s.Add(ctx, "idle", item(1, 1)))
	c, err = s.Get(ctx, "idle")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestCartStore_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewCartStore(time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Add(ctx, "old", item(1, 1)))
	now = now.Add(40 * time.Minute)
	require.NoError(t, s.Add(ctx, "new", item(1, 1)))

	now = now.Add(30 * time.Minute)
	s.Sweep()

	assert.NotContains(t, s.carts, "old")
	assert.Contains(t, s.carts, "new")
}

func TestCartStore_ZeroTTLKeepsCarts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewCartStore(0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Add(ctx, "s1", item(1, 1)))
	now = now.Add(24 * 365 * time.Hour)
	s.Sweep()

	c, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, c.IsEmpty())
}

func TestFlashStore_TakeOnce(t *testing.T) {
	ctx := context.Background()
	s := NewFlashStore()

	require.NoError(t, s.Put(ctx, "s1", "order", []byte("v"), time.Minute))

	// Other sessions do not see it.
	_, err := s.Take(ctx, "s2", "order")
	require.ErrorIs(t, err, session.ErrNoFlash)

	v, err := s.Take(ctx, "s1", "order")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	_, err = s.Take(ctx, "s1", "order")
	require.ErrorIs(t, err, session.ErrNoFlash)
}

func TestFlashStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewFlashStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "s1", "a", []byte("1"), time.Minute))
	require.NoError(t, s.Put(ctx, "s1", "b", []byte("2"), time.Hour))

	now = now.Add(2 * time.Minute)

	_, err := s.Take(ctx, "s1", "a")
	require.ErrorIs(t, err, session.ErrNoFlash)

	s.Sweep()
	assert.Len(t, s.entries, 1)

	v, err := s.Take(ctx, "s1", "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}
