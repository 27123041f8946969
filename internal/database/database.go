package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// DB wraps sql.DB for the booking service.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 500",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Venues
		`CREATE TABLE IF NOT EXISTS venues (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            location TEXT NOT NULL,
            hourly_price REAL NOT NULL DEFAULT 0,
            owner_id TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		// Reservations
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            venue_id TEXT NOT NULL,
            date TEXT NOT NULL,
            from_time TEXT NOT NULL,
            to_time TEXT NOT NULL,
            holder_id TEXT NOT NULL,
            holder_name TEXT NOT NULL DEFAULT '',
            holder_phone TEXT NOT NULL DEFAULT '',
            cost REAL NOT NULL DEFAULT 0,
            payment_type TEXT NOT NULL DEFAULT '',
            payment_ref TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
        )`,

		// The conditional-write primitive: at most one occupying reservation
		// per slot key. Inserts colliding with a pending or confirmed row
		// fail with a unique constraint violation.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_active_slot
            ON reservations(venue_id, date, from_time)
            WHERE status IN ('pending', 'confirmed')`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_venues_owner ON venues(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_holder ON reservations(holder_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_venue_date ON reservations(venue_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status, created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// mapSQLiteErr translates driver errors into the store's sentinel errors.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrSlotTaken, err)
		// A foreign key failure on insert means the referenced venue is
		// gone: a deterministic caller error, not a transient one.
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrStoreBusy, err)
		}
	}
	return err
}
