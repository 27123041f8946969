// Package booking implements the slot reservation guard: the atomic
// check-and-reserve entry point, its business rules and the expiry sweeper.
package booking

import (
	"errors"
	"strings"
	"time"

	"kidspark/internal/model"
)

// ErrInvalidContact is returned when the holder phone fails the format rule.
var ErrInvalidContact = errors.New("invalid contact phone")

// ErrMissingPaymentRef is returned when the chosen payment type requires a
// transaction reference and none was supplied.
var ErrMissingPaymentRef = errors.New("missing payment reference")

// ErrSlotConflict is returned when the slot was genuinely lost to another
// holder. Retrying the identical request conflicts again deterministically;
// the caller should re-prompt for a different slot.
var ErrSlotConflict = errors.New("slot conflict")

// ErrStoreUnavailable is returned when the backing store kept failing
// transiently; the whole operation is safe to retry after backoff.
var ErrStoreUnavailable = errors.New("reservation store unavailable")

// Rules holds the versioned business rules as configuration, not branches.
type Rules struct {
	// GraceWindow is how long a pending reservation may stay unconfirmed.
	GraceWindow time.Duration
	// MaxAttempts bounds retries of the atomic reserve on contention.
	MaxAttempts int
	// RetryBackoff is the base delay between attempts; jitter is added.
	RetryBackoff time.Duration
	// AttemptTimeout caps a single store call.
	AttemptTimeout time.Duration
	// RequireReference lists payment types that must carry a transaction
	// reference. Types not listed discard any supplied reference.
	RequireReference []string
}

// DefaultRules mirrors the confirmation form's behavior: a 20 minute
// countdown, and references required for everything except cash on sight.
func DefaultRules() Rules {
	return Rules{
		GraceWindow:      model.DefaultGraceWindow,
		MaxAttempts:      3,
		RetryBackoff:     50 * time.Millisecond,
		AttemptTimeout:   300 * time.Millisecond,
		RequireReference: []string{model.PaymentFull, model.PaymentAdvance},
	}
}

// RequiresReference reports whether the payment type needs a transaction
// reference.
func (r Rules) RequiresReference(paymentType string) bool {
	for _, t := range r.RequireReference {
		if t == paymentType {
			return true
		}
	}
	return false
}

// ValidPhone checks the holder contact rule: exactly 11 digits starting "01".
func ValidPhone(phone string) bool {
	if len(phone) != 11 {
		return false
	}
	if !strings.HasPrefix(phone, "01") {
		return false
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
