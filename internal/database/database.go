package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrVersionConflict is returned when an optimistic version check fails
// because another admin mutated the same garage row concurrently.
var ErrVersionConflict = errors.New("version conflict")

// DB wraps sql.DB for the status engine.
type DB struct {
	*sql.DB
}

// NewDB opens the database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Garages (minimal record; full management is external)
		`CREATE TABLE IF NOT EXISTS garages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			address TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Current operational status, one row per garage
		`CREATE TABLE IF NOT EXISTS garage_status (
			garage_id INTEGER PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'open',
			reason TEXT NOT NULL DEFAULT '',
			changed_by INTEGER NOT NULL DEFAULT 0,
			changed_at DATETIME NOT NULL,
			force_close_used BOOLEAN NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		// Append-only status change history
		`CREATE TABLE IF NOT EXISTS garage_status_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			changed_by INTEGER NOT NULL DEFAULT 0,
			changed_at DATETIME NOT NULL,
			force_close_used BOOLEAN NOT NULL DEFAULT 0,
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		// Weekly operating schedule, one row per garage
		`CREATE TABLE IF NOT EXISTS weekly_schedules (
			garage_id INTEGER PRIMARY KEY,
			is_24_7 BOOLEAN NOT NULL DEFAULT 0,
			opening_time TEXT NOT NULL,
			closing_time TEXT NOT NULL,
			operating_days TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		// Temporary overrides, append-only
		`CREATE TABLE IF NOT EXISTS temporary_overrides (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_by INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			override_until DATETIME NOT NULL,
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		// Bookings (owned by the booking subsystem; mirrored here so the
		// close gate and tests have a count source)
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			garage_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			vehicle_id INTEGER,
			status TEXT NOT NULL DEFAULT 'upcoming',
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (garage_id) REFERENCES garages(id)
		)`,

		// Admin session state (fallback store when redis is down)
		`CREATE TABLE IF NOT EXISTS admin_sessions (
			admin_id INTEGER PRIMARY KEY,
			garage_id INTEGER NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_garages_active ON garages(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_garage ON garage_status_history(garage_id, changed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_overrides_garage_until ON temporary_overrides(garage_id, override_until)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_garage_status ON bookings(garage_id, status)`,
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
