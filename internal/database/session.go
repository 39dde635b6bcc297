package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AdminSession is the per-admin "currently selected garage". Session
// scope only; nothing in the status engine reads it.
type AdminSession struct {
	AdminID   int64     `json:"admin_id"`
	GarageID  int64     `json:"garage_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetAdminSession returns the stored session for an admin, or nil.
func (db *DB) GetAdminSession(ctx context.Context, adminID int64) (*AdminSession, error) {
	row := db.QueryRowContext(ctx,
		`SELECT admin_id, garage_id, updated_at FROM admin_sessions WHERE admin_id = ?`,
		adminID,
	)
	var s AdminSession
	err := row.Scan(&s.AdminID, &s.GarageID, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin session %d: %w", adminID, err)
	}
	return &s, nil
}

// SetAdminSession upserts the session row for an admin.
func (db *DB) SetAdminSession(ctx context.Context, s *AdminSession) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO admin_sessions (admin_id, garage_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(admin_id) DO UPDATE SET
			garage_id = excluded.garage_id,
			updated_at = excluded.updated_at`,
		s.AdminID, s.GarageID, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("set admin session %d: %w", s.AdminID, err)
	}
	return nil
}

// ClearAdminSession removes the session row for an admin.
func (db *DB) ClearAdminSession(ctx context.Context, adminID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE admin_id = ?`, adminID)
	if err != nil {
		return fmt.Errorf("clear admin session %d: %w", adminID, err)
	}
	return nil
}
