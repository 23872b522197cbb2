package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute), mr
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	type payload struct {
		Name  string  `json:"name"`
		Total float64 `json:"total"`
	}

	require.NoError(t, c.SetJSON(ctx, "k", payload{Name: "cash", Total: 125.50}))

	var got payload
	require.NoError(t, c.GetJSON(ctx, "k", &got))
	require.Equal(t, "cash", got.Name)
	require.Equal(t, 125.50, got.Total)
}

func TestCacheMiss(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	var got map[string]any
	err := c.GetJSON(ctx, "absent", &got)
	require.ErrorIs(t, err, ErrMiss)
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	require.NoError(t, c.SetJSON(ctx, "k", 1))
	mr.FastForward(2 * time.Minute)

	var got int
	require.ErrorIs(t, c.GetJSON(ctx, "k", &got), ErrMiss)
}

func TestCacheDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.SetJSON(ctx, "k", 1))
	require.NoError(t, c.Delete(ctx, "k"))

	var got int
	require.ErrorIs(t, c.GetJSON(ctx, "k", &got), ErrMiss)
}
