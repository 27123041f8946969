// Package ratelimit throttles booking attempts per holder.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// PerHolder keeps a token bucket per holder identity.
type PerHolder struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a limiter allowing perMinute attempts with the given burst.
func New(perMinute, burst int) *PerHolder {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 3
	}
	return &PerHolder{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// Allow reports whether the holder may make another attempt now.
func (p *PerHolder) Allow(holderID string) bool {
	p.mu.Lock()
	l, ok := p.limiters[holderID]
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
		p.limiters[holderID] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
