package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// BackupService snapshots the reservation database on an interval. Snapshots
// go through VACUUM INTO on the live connection, which is safe under WAL,
// unlike copying the database file.
type BackupService struct {
	db        *DB
	dir       string
	interval  time.Duration
	retention time.Duration
	logger    *zerolog.Logger
}

func NewBackupService(db *DB, dir string, interval, retention time.Duration, logger *zerolog.Logger) *BackupService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &BackupService{
		db:        db,
		dir:       dir,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Run snapshots immediately, then on every tick until the context is
// cancelled.
func (s *BackupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.Snapshot(ctx); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Snapshot(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.cleanup()
		}
	}
}

// Snapshot writes a consistent copy of the database into the backup
// directory.
func (s *BackupService) Snapshot(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("kidspark_%s.db", time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	// VACUUM INTO refuses to overwrite, so the timestamped name matters.
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("snapshot to %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("database backup written")
	return nil
}

func (s *BackupService) cleanup() {
	if s.retention <= 0 {
		return
	}

	files, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("backup cleanup: read directory failed")
		return
	}

	cutoff := time.Now().Add(-s.retention)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("removing old backup")
			_ = os.Remove(filepath.Join(s.dir, file.Name()))
		}
	}
}
