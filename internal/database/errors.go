// Package database is the SQLite-backed reservation and venue store. The
// sentinel errors below let the guard and the HTTP layer distinguish failure
// scenarios without inspecting driver internals.
package database

import "errors"

// ErrNotFound is returned when a venue or reservation does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrSlotTaken is returned when a reserve lost the race for its slot key: a
// pending or confirmed reservation already holds the (venue, date, window)
// triple. The caller should pick a different slot, not retry this one.
var ErrSlotTaken = errors.New("slot already taken")

// ErrStoreBusy is returned on transient write contention (SQLITE_BUSY /
// SQLITE_LOCKED). The operation is safe to retry.
var ErrStoreBusy = errors.New("store busy")

// ErrVenueBusy is returned when a venue cannot be deleted because it still
// has active reservations.
var ErrVenueBusy = errors.New("venue has active reservations")

// ErrWindowElapsed is returned when a payment confirmation arrives after the
// grace window closed; the reservation has expired and its slot is free.
var ErrWindowElapsed = errors.New("confirmation window elapsed")

// ErrReservationClosed is returned when an operation targets a cancelled
// reservation.
var ErrReservationClosed = errors.New("reservation closed")
