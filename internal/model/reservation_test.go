package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func datetime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestReservation_ExpiryBoundary(t *testing.T) {
	created := datetime(2026, 1, 15, 10, 0)
	r := Reservation{Status: StatusPending, CreatedAt: created}

	edge := created.Add(DefaultGraceWindow)

	// One instant before the edge the slot is still held.
	assert.True(t, r.IsActive(edge.Add(-time.Nanosecond), DefaultGraceWindow))
	assert.False(t, r.IsExpired(edge.Add(-time.Nanosecond), DefaultGraceWindow))

	// Exactly at the edge it frees.
	assert.False(t, r.IsActive(edge, DefaultGraceWindow))
	assert.True(t, r.IsExpired(edge, DefaultGraceWindow))
}

func TestReservation_ConfirmedNeverExpires(t *testing.T) {
	r := Reservation{Status: StatusConfirmed, CreatedAt: datetime(2026, 1, 15, 10, 0)}
	way := r.CreatedAt.Add(48 * time.Hour)
	assert.True(t, r.IsActive(way, DefaultGraceWindow))
	assert.False(t, r.IsExpired(way, DefaultGraceWindow))
}

func TestReservation_TerminalStatesFreeSlot(t *testing.T) {
	now := datetime(2026, 1, 15, 10, 5)
	for _, status := range []string{StatusCancelled, StatusExpired} {
		r := Reservation{Status: status, CreatedAt: datetime(2026, 1, 15, 10, 0)}
		assert.False(t, r.IsActive(now, DefaultGraceWindow), status)
		assert.True(t, r.IsTerminal(), status)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusExpired, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusExpired, false},
		{StatusConfirmed, StatusPending, false},
		{StatusExpired, StatusPending, false},
		{StatusExpired, StatusConfirmed, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
