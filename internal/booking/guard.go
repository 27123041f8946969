package booking

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kidspark/internal/database"
	"kidspark/internal/metrics"
	"kidspark/internal/model"
	"kidspark/internal/slot"
)

// ReservationStore is the backing store the guard coordinates through. All
// cross-caller coordination happens via the store's atomicity primitive;
// the guard holds no shared in-memory state.
type ReservationStore interface {
	Reserve(ctx context.Context, res *model.Reservation, window time.Duration) error
	Release(ctx context.Context, id, status string) error
	ConfirmPayment(ctx context.Context, id, ref string, now time.Time, window time.Duration) error
}

// Request carries one booking attempt from the confirmation form.
type Request struct {
	VenueID     string  `json:"venue_id"`
	Date        string  `json:"date"`
	FromTime    string  `json:"from_time"`
	ToTime      string  `json:"to_time"`
	HolderName  string  `json:"holder_name"`
	HolderPhone string  `json:"holder_phone"`
	Cost        float64 `json:"cost"`
	PaymentType string  `json:"payment_type"`
	PaymentRef  string  `json:"payment_ref"`
}

// Guard performs atomic check-and-reserve against the store.
type Guard struct {
	store  ReservationStore
	rules  Rules
	logger *zerolog.Logger
	now    func() time.Time
}

// NewGuard creates a guard with the given store and rules.
func NewGuard(store ReservationStore, rules Rules, logger *zerolog.Logger) *Guard {
	if rules.MaxAttempts <= 0 {
		rules.MaxAttempts = 1
	}
	return &Guard{
		store:  store,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// TryReserve validates the request and claims its slot key atomically. On
// success the returned reservation is pending and fully persisted; on any
// error nothing was written. Transient store contention is retried up to
// Rules.MaxAttempts with jittered backoff; ErrSlotConflict is only surfaced
// once a genuine collision is confirmed.
func (g *Guard) TryReserve(ctx context.Context, req Request) (*model.Reservation, error) {
	holderID := strings.TrimSpace(HolderFromContext(ctx))
	if holderID == "" {
		return nil, fmt.Errorf("%w: no holder identity", ErrInvalidContact)
	}

	phone := strings.TrimSpace(req.HolderPhone)
	if !ValidPhone(phone) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContact, phone)
	}

	ref := strings.TrimSpace(req.PaymentRef)
	if g.rules.RequiresReference(req.PaymentType) {
		if ref == "" {
			return nil, fmt.Errorf("%w: payment type %q", ErrMissingPaymentRef, req.PaymentType)
		}
	} else {
		// Reference is neither required nor stored for this payment type.
		ref = ""
	}

	now := g.now().UTC()
	key, err := slot.MakeKey(req.VenueID, req.Date, req.FromTime, req.ToTime, now)
	if err != nil {
		return nil, err
	}

	res := &model.Reservation{
		ID:          uuid.NewString(),
		VenueID:     key.VenueID,
		Date:        key.Date,
		FromTime:    key.From,
		ToTime:      key.To,
		HolderID:    holderID,
		HolderName:  strings.TrimSpace(req.HolderName),
		HolderPhone: phone,
		Cost:        req.Cost,
		PaymentType: req.PaymentType,
		PaymentRef:  ref,
		Status:      model.StatusPending,
		CreatedAt:   now,
	}

	err = g.withRetry(ctx, "reserve", func(ctx context.Context) error {
		return g.store.Reserve(ctx, res, g.rules.GraceWindow)
	})
	switch {
	case err == nil:
		metrics.IncReservationCreated(res.PaymentType)
		g.logger.Info().
			Str("reservation_id", res.ID).
			Str("slot", key.String()).
			Str("holder_id", holderID).
			Msg("slot reserved")
		return res, nil

	case errors.Is(err, database.ErrSlotTaken):
		metrics.IncSlotConflict()
		g.logger.Info().
			Str("slot", key.String()).
			Str("holder_id", holderID).
			Msg("slot conflict")
		return nil, fmt.Errorf("%w: %s", ErrSlotConflict, key)

	case errors.Is(err, database.ErrNotFound):
		// The venue vanished between browse and book.
		return nil, fmt.Errorf("venue %s: %w", key.VenueID, database.ErrNotFound)

	case errors.Is(err, ErrStoreUnavailable):
		return nil, err

	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// withRetry runs fn under the per-attempt timeout, retrying transient store
// contention with jittered backoff. Exhaustion wraps the last error as
// ErrStoreUnavailable; every other failure returns unchanged, so ErrStoreBusy
// never escapes the guard.
func (g *Guard) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.rules.MaxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc = func() {}
		if g.rules.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, g.rules.AttemptTimeout)
		}
		err := fn(attemptCtx)
		cancel()

		switch {
		case err == nil:
			return nil
		case errors.Is(err, database.ErrStoreBusy), errors.Is(err, context.DeadlineExceeded):
			lastErr = err
			g.logger.Warn().Err(err).
				Str("op", op).
				Int("attempt", attempt).
				Msg("store contention, retrying")
			if attempt < g.rules.MaxAttempts {
				if err := g.backoff(ctx, attempt); err != nil {
					return err
				}
			}
		default:
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

// Confirm records payment proof for a pending reservation.
func (g *Guard) Confirm(ctx context.Context, id, ref string) error {
	err := g.withRetry(ctx, "confirm", func(ctx context.Context) error {
		return g.store.ConfirmPayment(ctx, id, strings.TrimSpace(ref), g.now(), g.rules.GraceWindow)
	})
	if err != nil {
		return err
	}
	metrics.IncReservationConfirmed()
	g.logger.Info().Str("reservation_id", id).Msg("reservation confirmed")
	return nil
}

// Cancel releases a reservation by explicit holder or owner action.
func (g *Guard) Cancel(ctx context.Context, id string) error {
	err := g.withRetry(ctx, "cancel", func(ctx context.Context) error {
		return g.store.Release(ctx, id, model.StatusCancelled)
	})
	if err != nil {
		return err
	}
	metrics.IncReservationReleased(model.StatusCancelled)
	g.logger.Info().Str("reservation_id", id).Msg("reservation cancelled")
	return nil
}

// Window returns the configured grace window.
func (g *Guard) Window() time.Duration {
	return g.rules.GraceWindow
}

func (g *Guard) backoff(ctx context.Context, attempt int) error {
	delay := g.rules.RetryBackoff * time.Duration(attempt)
	if delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)))
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type holderKeyType struct{}

var holderKey holderKeyType

// WithHolder attaches the opaque holder identity to the context. The guard
// treats it as an opaque string supplied by the identity provider.
func WithHolder(ctx context.Context, holderID string) context.Context {
	return context.WithValue(ctx, holderKey, holderID)
}

// HolderFromContext extracts the holder identity, if any.
func HolderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(holderKey).(string); ok {
		return v
	}
	return ""
}
