package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"kidspark/internal/metrics"
)

// StaleExpirer reclaims over-window pending reservations in the store.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, window time.Duration) (int64, error)
}

// Sweeper periodically flips stale pending reservations to expired, freeing
// their slot keys. Expiry is also applied lazily on the read path, so the
// sweeper only keeps the stored rows from drifting; it owns no per-booking
// timers.
type Sweeper struct {
	store    StaleExpirer
	window   time.Duration
	interval time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewSweeper creates a sweeper with the given grace window and tick interval.
func NewSweeper(store StaleExpirer, window, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		window:   window,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}

// SweepOnce reclaims stale pending reservations and returns how many
// expired. Expiry is monotonic: a reclaimed reservation never returns to
// pending, its holder must reserve again.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	expired, err := s.store.ExpireStale(ctx, s.now(), s.window)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		metrics.AddReservationsExpired(float64(expired))
		s.logger.Info().Int64("expired", expired).Msg("reclaimed stale reservations")
	}
	return expired, nil
}
