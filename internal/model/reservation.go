package model

import "time"

// Reservation statuses. Pending and confirmed occupy a slot; cancelled and
// expired free it. Confirmed, cancelled and expired are terminal except for
// the confirmed -> cancelled transition.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Payment types offered by the confirmation form.
const (
	PaymentFull    = "Full Payment"
	PaymentAdvance = "Advance Payment"
	PaymentCash    = "Cash On Sight"
)

// DefaultGraceWindow is how long a pending reservation may stay unconfirmed
// before it expires and frees its slot.
const DefaultGraceWindow = 20 * time.Minute

// Reservation is the unit of truth for slot occupancy. The holder identity is
// an opaque string supplied by the identity provider.
type Reservation struct {
	ID          string    `json:"id"`
	VenueID     string    `json:"venue_id"`
	VenueName   string    `json:"venue_name,omitempty"`
	Date        string    `json:"date"` // 2006-01-02
	FromTime    string    `json:"from_time"`
	ToTime      string    `json:"to_time"`
	HolderID    string    `json:"holder_id"`
	HolderName  string    `json:"holder_name"`
	HolderPhone string    `json:"holder_phone"`
	Cost        float64   `json:"cost"`
	PaymentType string    `json:"payment_type"`
	PaymentRef  string    `json:"payment_ref,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExpiresAt returns the instant the confirmation window closes.
func (r *Reservation) ExpiresAt(window time.Duration) time.Time {
	return r.CreatedAt.Add(window)
}

// IsExpired reports whether a pending reservation has outlived its window.
// The slot frees exactly at the window edge, not a moment before.
func (r *Reservation) IsExpired(now time.Time, window time.Duration) bool {
	return r.Status == StatusPending && !now.Before(r.ExpiresAt(window))
}

// IsActive reports whether the reservation occupies its slot at now.
func (r *Reservation) IsActive(now time.Time, window time.Duration) bool {
	switch r.Status {
	case StatusConfirmed:
		return true
	case StatusPending:
		return now.Before(r.ExpiresAt(window))
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can occupy the slot again.
func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusCancelled || r.Status == StatusExpired
}

var reservationTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusCancelled},
}

// CanTransition checks the reservation state machine. Expiry is one-way; an
// expired reservation never returns to pending.
func CanTransition(from, to string) bool {
	for _, s := range reservationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
