// Package db stores saved summaries and the key-value state behind usage
// metering and settings in a SQLite database.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hpungsan/recap/internal/config"
)

// CurrentSchemaVersion is the latest schema version.
// Append to migrations to bump it.
var CurrentSchemaVersion = len(migrations)

// FileName is the database file created inside the base directory.
const FileName = "recap.db"

// ExportsDir is the default directory for exports and backups, created inside
// the base directory.
const ExportsDir = "exports"

// Init initializes the SQLite database at baseDir/recap.db, creating baseDir
// and its exports directory (0700) first.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.recap.
func Init(baseDir string) (*sql.DB, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, ExportsDir)} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		_ = os.Chmod(dir, 0700)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dbPath := filepath.Join(baseDir, FileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, step := range []func(*sql.DB) error{verifyWALMode, migrate} {
		if err := step(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	_ = os.Chmod(dbPath, 0600)
	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrations[i] upgrades the schema from version i to i+1.
var migrations = []string{
	`
		CREATE TABLE IF NOT EXISTS summaries (
		  id            TEXT PRIMARY KEY,
		  title         TEXT NOT NULL,
		  channel       TEXT NOT NULL,
		  duration      TEXT,
		  url           TEXT NOT NULL,
		  video_id      TEXT,
		  summary_type  TEXT NOT NULL,
		  content       TEXT NOT NULL,
		  transcript    TEXT,
		  word_count    INTEGER NOT NULL,
		  tags_json     TEXT,
		  is_favorite   INTEGER NOT NULL DEFAULT 0,
		  created_at    INTEGER NOT NULL,
		  last_accessed INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_summaries_created
		ON summaries(created_at DESC, id DESC);

		CREATE INDEX IF NOT EXISTS idx_summaries_type
		ON summaries(summary_type);

		CREATE INDEX IF NOT EXISTS idx_summaries_favorite
		ON summaries(is_favorite)
		WHERE is_favorite = 1;

		CREATE TABLE IF NOT EXISTS kv (
		  key        TEXT PRIMARY KEY,
		  value      TEXT NOT NULL,
		  updated_at INTEGER NOT NULL
		);
	`,
}

// migrate applies pending migrations based on user_version. Each migration
// and its version bump commit together.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, len(migrations))
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: failed to set user_version: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
