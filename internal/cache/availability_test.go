package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidspark/internal/slot"
)

func newTestCache(t *testing.T) *AvailabilityCache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	logger := zerolog.Nop()
	return New(rdb, time.Minute, &logger)
}

func TestAvailabilityCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "venue-1", "2030-06-01")
	assert.False(t, ok)

	infos := []slot.Info{
		{From: "10am", To: "11am", Available: true},
		{From: "11am", To: "12pm", Available: false},
	}
	c.Set(ctx, "venue-1", "2030-06-01", infos)

	got, ok := c.Get(ctx, "venue-1", "2030-06-01")
	require.True(t, ok)
	assert.Equal(t, infos, got)

	// Other days are unaffected.
	_, ok = c.Get(ctx, "venue-1", "2030-06-02")
	assert.False(t, ok)
}

func TestAvailabilityCache_Invalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "venue-1", "2030-06-01", []slot.Info{{From: "10am", To: "11am", Available: true}})
	c.Invalidate(ctx, "venue-1", "2030-06-01")

	_, ok := c.Get(ctx, "venue-1", "2030-06-01")
	assert.False(t, ok)
}

func TestAvailabilityCache_NilSafe(t *testing.T) {
	var c *AvailabilityCache
	ctx := context.Background()

	_, ok := c.Get(ctx, "venue-1", "2030-06-01")
	assert.False(t, ok)
	c.Set(ctx, "venue-1", "2030-06-01", nil)
	c.Invalidate(ctx, "venue-1", "2030-06-01")
}
