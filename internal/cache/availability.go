// Package cache provides optional Redis caching of per-day availability
// views. A nil *AvailabilityCache is valid and disables caching.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kidspark/internal/slot"
)

type AvailabilityCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// New returns a cache over the given Redis client.
func New(rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *AvailabilityCache {
	return &AvailabilityCache{rdb: rdb, ttl: ttl, logger: logger}
}

func dayKey(venueID, date string) string {
	return fmt.Sprintf("availability:%s:%s", venueID, date)
}

// Get returns the cached day view, if present.
func (c *AvailabilityCache) Get(ctx context.Context, venueID, date string) ([]slot.Info, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, dayKey(venueID, date)).Bytes()
	if err != nil {
		return nil, false
	}
	var infos []slot.Info
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, false
	}
	return infos, true
}

// Set stores the day view. Cache failures are logged, never surfaced.
func (c *AvailabilityCache) Set(ctx context.Context, venueID, date string, infos []slot.Info) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(infos)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, dayKey(venueID, date), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("availability cache write failed")
	}
}

// Invalidate drops the day view after a reservation mutates it.
func (c *AvailabilityCache) Invalidate(ctx context.Context, venueID, date string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, dayKey(venueID, date)).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("availability cache invalidation failed")
	}
}
