package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kidspark/internal/model"
	"kidspark/internal/slot"
)

const reservationColumns = `id, venue_id, date, from_time, to_time, holder_id,
    holder_name, holder_phone, cost, payment_type, payment_ref, status,
    created_at, updated_at`

// Reserve atomically claims a slot key with a new pending reservation. The
// stale-pending cleanup and the insert run in one transaction, so the check
// and the write cannot interleave with a concurrent caller: the partial
// unique index either admits exactly one row or fails the insert.
//
// Returns ErrSlotTaken on a genuine collision and ErrStoreBusy on transient
// write contention.
func (db *DB) Reserve(ctx context.Context, res *model.Reservation, window time.Duration) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.CreatedAt
	res.Status = model.StatusPending

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(err)
	}
	defer tx.Rollback()

	// Flip over-window pending rows for this key so they stop occupying the
	// unique index. Lazy expiry: the sweeper does the same globally.
	cutoff := res.CreatedAt.Add(-window)
	_, err = tx.ExecContext(ctx, `
        UPDATE reservations
        SET status = ?, updated_at = ?
        WHERE venue_id = ? AND date = ? AND from_time = ?
        AND status = ? AND created_at <= ?`,
		model.StatusExpired, res.CreatedAt,
		res.VenueID, res.Date, res.FromTime,
		model.StatusPending, cutoff,
	)
	if err != nil {
		return mapSQLiteErr(err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO reservations (`+reservationColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.VenueID, res.Date, res.FromTime, res.ToTime, res.HolderID,
		res.HolderName, res.HolderPhone, res.Cost, res.PaymentType, res.PaymentRef,
		res.Status, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return mapSQLiteErr(err)
	}

	if err := tx.Commit(); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

// IsFree reports whether no reservation occupies the key at now: neither a
// confirmed row nor a pending row still inside its grace window.
func (db *DB) IsFree(ctx context.Context, key slot.Key, now time.Time, window time.Duration) (bool, error) {
	cutoff := now.UTC().Add(-window)
	var count int
	err := db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM reservations
        WHERE venue_id = ? AND date = ? AND from_time = ?
        AND (status = ? OR (status = ? AND created_at > ?))`,
		key.VenueID, key.Date, key.From,
		model.StatusConfirmed, model.StatusPending, cutoff,
	).Scan(&count)
	if err != nil {
		return false, mapSQLiteErr(err)
	}
	return count == 0, nil
}

// Release transitions a reservation to cancelled or expired. Releasing an
// already-released reservation is a no-op, not an error.
func (db *DB) Release(ctx context.Context, id, status string) error {
	if status != model.StatusCancelled && status != model.StatusExpired {
		return fmt.Errorf("release to %q is not allowed", status)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(err)
	}
	defer tx.Rollback()

	var current model.Reservation
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM reservations WHERE id = ?", id,
	).Scan(&current.Status)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return mapSQLiteErr(err)
	}

	// Already-released rows and off-machine transitions (like expiring a
	// confirmed reservation) are idempotent no-ops.
	if current.IsTerminal() || !model.CanTransition(current.Status, status) {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return mapSQLiteErr(err)
	}
	return mapSQLiteErr(tx.Commit())
}

// ConfirmPayment transitions a pending reservation to confirmed when the
// proof arrives inside the grace window. An over-window confirmation flips
// the row to expired and reports ErrWindowElapsed. Confirming an already
// confirmed reservation is a no-op.
func (db *DB) ConfirmPayment(ctx context.Context, id, ref string, now time.Time, window time.Duration) error {
	now = now.UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(err)
	}
	defer tx.Rollback()

	var current model.Reservation
	err = tx.QueryRowContext(ctx,
		"SELECT status, created_at FROM reservations WHERE id = ?", id,
	).Scan(&current.Status, &current.CreatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return mapSQLiteErr(err)
	}

	switch current.Status {
	case model.StatusConfirmed:
		return nil
	case model.StatusCancelled:
		return ErrReservationClosed
	case model.StatusExpired:
		return ErrWindowElapsed
	}

	if current.IsExpired(now, window) {
		if _, err := tx.ExecContext(ctx, `
            UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
			model.StatusExpired, now, id); err != nil {
			return mapSQLiteErr(err)
		}
		if err := tx.Commit(); err != nil {
			return mapSQLiteErr(err)
		}
		return ErrWindowElapsed
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE reservations
        SET status = ?, updated_at = ?,
            payment_ref = CASE WHEN ? != '' THEN ? ELSE payment_ref END
        WHERE id = ?`,
		model.StatusConfirmed, now, ref, ref, id,
	)
	if err != nil {
		return mapSQLiteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

// ExpireStale flips every over-window pending reservation to expired and
// returns how many rows were reclaimed. Used by the sweeper.
func (db *DB) ExpireStale(ctx context.Context, now time.Time, window time.Duration) (int64, error) {
	now = now.UTC()
	result, err := db.ExecContext(ctx, `
        UPDATE reservations SET status = ?, updated_at = ?
        WHERE status = ? AND created_at <= ?`,
		model.StatusExpired, now, model.StatusPending, now.Add(-window),
	)
	if err != nil {
		return 0, mapSQLiteErr(err)
	}
	return result.RowsAffected()
}

// GetReservation returns a reservation by ID.
func (db *DB) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id)
	res, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return res, nil
}

// ListByHolder returns all reservations made by a holder, newest first.
func (db *DB) ListByHolder(ctx context.Context, holderID string) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT r.id, r.venue_id, v.name, r.date, r.from_time, r.to_time,
               r.holder_id, r.holder_name, r.holder_phone, r.cost,
               r.payment_type, r.payment_ref, r.status, r.created_at, r.updated_at
        FROM reservations r
        JOIN venues v ON v.id = r.venue_id
        WHERE r.holder_id = ?
        ORDER BY r.created_at DESC`, holderID)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()
	return collectJoined(rows)
}

// ListByOwner returns all reservations across every venue the owner lists.
func (db *DB) ListByOwner(ctx context.Context, ownerID string) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT r.id, r.venue_id, v.name, r.date, r.from_time, r.to_time,
               r.holder_id, r.holder_name, r.holder_phone, r.cost,
               r.payment_type, r.payment_ref, r.status, r.created_at, r.updated_at
        FROM reservations r
        JOIN venues v ON v.id = r.venue_id
        WHERE v.owner_id = ?
        ORDER BY r.date DESC, r.from_time`, ownerID)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()
	return collectJoined(rows)
}

// DaySlots returns per-window availability for a venue and date. A window is
// unavailable when an active reservation holds it or when its start is
// already in the past.
func (db *DB) DaySlots(ctx context.Context, venueID, date string, now time.Time, window time.Duration) ([]slot.Info, error) {
	now = now.UTC()
	cutoff := now.Add(-window)

	rows, err := db.QueryContext(ctx, `
        SELECT from_time FROM reservations
        WHERE venue_id = ? AND date = ?
        AND (status = ? OR (status = ? AND created_at > ?))`,
		venueID, date, model.StatusConfirmed, model.StatusPending, cutoff,
	)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var from string
		if err := rows.Scan(&from); err != nil {
			return nil, err
		}
		taken[from] = true
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteErr(err)
	}

	day, err := time.ParseInLocation(slot.DateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: bad date %q", slot.ErrInvalidSlot, date)
	}

	infos := make([]slot.Info, 0, len(slot.StartLabels()))
	for _, from := range slot.StartLabels() {
		to, err := slot.Next(from)
		if err != nil {
			return nil, err
		}
		hour, err := slot.Hour(from)
		if err != nil {
			return nil, err
		}
		isPast := day.Add(time.Duration(hour) * time.Hour).Before(now)
		infos = append(infos, slot.Info{
			From:      from,
			To:        to,
			Available: !taken[from] && !isPast,
		})
	}
	return infos, nil
}

// HasActiveReservations reports whether a venue holds any occupying
// reservation. Used to refuse venue deletion.
func (db *DB) HasActiveReservations(ctx context.Context, venueID string, now time.Time, window time.Duration) (bool, error) {
	cutoff := now.UTC().Add(-window)
	var count int
	err := db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM reservations
        WHERE venue_id = ?
        AND (status = ? OR (status = ? AND created_at > ?))`,
		venueID, model.StatusConfirmed, model.StatusPending, cutoff,
	).Scan(&count)
	if err != nil {
		return false, mapSQLiteErr(err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(
		&r.ID, &r.VenueID, &r.Date, &r.FromTime, &r.ToTime, &r.HolderID,
		&r.HolderName, &r.HolderPhone, &r.Cost, &r.PaymentType, &r.PaymentRef,
		&r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectJoined(rows *sql.Rows) ([]model.Reservation, error) {
	var reservations []model.Reservation
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(
			&r.ID, &r.VenueID, &r.VenueName, &r.Date, &r.FromTime, &r.ToTime,
			&r.HolderID, &r.HolderName, &r.HolderPhone, &r.Cost,
			&r.PaymentType, &r.PaymentRef, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}
