package database

import (
	"context"
	"database/sql"
	"time"

	"kidspark/internal/model"
)

// CreateVenue inserts a new venue listing.
func (db *DB) CreateVenue(ctx context.Context, v *model.Venue) error {
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	_, err := db.ExecContext(ctx, `
        INSERT INTO venues (id, name, location, hourly_price, owner_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Location, v.HourlyPrice, v.OwnerID, v.CreatedAt, v.UpdatedAt,
	)
	return mapSQLiteErr(err)
}

// GetVenue returns a venue by ID.
func (db *DB) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	var v model.Venue
	err := db.QueryRowContext(ctx, `
        SELECT id, name, location, hourly_price, owner_id, created_at, updated_at
        FROM venues WHERE id = ?`, id,
	).Scan(&v.ID, &v.Name, &v.Location, &v.HourlyPrice, &v.OwnerID, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	return &v, nil
}

// ListVenues returns venues matching the search term against name or
// location; an empty term lists everything.
func (db *DB) ListVenues(ctx context.Context, search string) ([]model.Venue, error) {
	query := `
        SELECT id, name, location, hourly_price, owner_id, created_at, updated_at
        FROM venues`
	args := []any{}
	if search != "" {
		query += " WHERE name LIKE ? OR location LIKE ?"
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	query += " ORDER BY name"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Location, &v.HourlyPrice, &v.OwnerID, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// ListVenuesByOwner returns every venue listed by the owner.
func (db *DB) ListVenuesByOwner(ctx context.Context, ownerID string) ([]model.Venue, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, name, location, hourly_price, owner_id, created_at, updated_at
        FROM venues WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, mapSQLiteErr(err)
	}
	defer rows.Close()

	var venues []model.Venue
	for rows.Next() {
		var v model.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Location, &v.HourlyPrice, &v.OwnerID, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// UpdateVenue applies an owner edit. Only the owner may update a listing.
func (db *DB) UpdateVenue(ctx context.Context, v *model.Venue, actorID string) error {
	current, err := db.GetVenue(ctx, v.ID)
	if err != nil {
		return err
	}
	if current.OwnerID != actorID {
		return ErrForbidden
	}

	v.OwnerID = current.OwnerID
	v.UpdatedAt = time.Now().UTC()
	_, err = db.ExecContext(ctx, `
        UPDATE venues SET name = ?, location = ?, hourly_price = ?, updated_at = ?
        WHERE id = ?`,
		v.Name, v.Location, v.HourlyPrice, v.UpdatedAt, v.ID,
	)
	return mapSQLiteErr(err)
}

// DeleteVenue removes a listing. Only the owner may delete, and deletion is
// refused while the venue still has active reservations.
func (db *DB) DeleteVenue(ctx context.Context, id, actorID string, now time.Time, window time.Duration) error {
	current, err := db.GetVenue(ctx, id)
	if err != nil {
		return err
	}
	if current.OwnerID != actorID {
		return ErrForbidden
	}

	busy, err := db.HasActiveReservations(ctx, id, now, window)
	if err != nil {
		return err
	}
	if busy {
		return ErrVenueBusy
	}

	_, err = db.ExecContext(ctx, "DELETE FROM venues WHERE id = ?", id)
	return mapSQLiteErr(err)
}
