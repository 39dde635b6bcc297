package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parkhub/internal/model"
)

// InsertOverride appends a new override row. Prior rows are left
// untouched; the newest active one wins at resolution time.
func (db *DB) InsertOverride(ctx context.Context, o *model.TemporaryOverride) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO temporary_overrides (garage_id, action, reason, created_by, created_at, override_until)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.GarageID, o.Action, o.Reason, o.CreatedBy, o.CreatedAt, o.OverrideUntil,
	)
	if err != nil {
		return fmt.Errorf("insert override: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("override id: %w", err)
	}
	o.ID = id
	return nil
}

// ActiveOverride returns the winning override for a garage at now: the
// unexpired row with the latest created_at (highest id on ties), or nil
// when none is active.
func (db *DB) ActiveOverride(ctx context.Context, garageID int64, now time.Time) (*model.TemporaryOverride, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, garage_id, action, reason, created_by, created_at, override_until
		FROM temporary_overrides
		WHERE garage_id = ? AND override_until > ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		garageID, now,
	)
	var o model.TemporaryOverride
	err := row.Scan(&o.ID, &o.GarageID, &o.Action, &o.Reason, &o.CreatedBy, &o.CreatedAt, &o.OverrideUntil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active override for garage %d: %w", garageID, err)
	}
	return &o, nil
}

// ActiveOverrides returns the winning override per garage for a batch.
func (db *DB) ActiveOverrides(ctx context.Context, garageIDs []int64, now time.Time) (map[int64]model.TemporaryOverride, error) {
	out := make(map[int64]model.TemporaryOverride, len(garageIDs))
	if len(garageIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT id, garage_id, action, reason, created_by, created_at, override_until
		FROM temporary_overrides
		WHERE garage_id IN (%s) AND override_until > ?
		ORDER BY created_at, id`, placeholders(len(garageIDs)))
	args := append(int64Args(garageIDs), now)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("active overrides: %w", err)
	}
	defer rows.Close()

	// Ascending order means the last row scanned per garage is the winner.
	for rows.Next() {
		var o model.TemporaryOverride
		if err := rows.Scan(&o.ID, &o.GarageID, &o.Action, &o.Reason, &o.CreatedBy, &o.CreatedAt, &o.OverrideUntil); err != nil {
			return nil, err
		}
		out[o.GarageID] = o
	}
	return out, rows.Err()
}

// ListOverrides returns every override row for a garage, newest first,
// including expired and canceled ones.
func (db *DB) ListOverrides(ctx context.Context, garageID int64) ([]model.TemporaryOverride, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, garage_id, action, reason, created_by, created_at, override_until
		FROM temporary_overrides
		WHERE garage_id = ?
		ORDER BY created_at DESC, id DESC`,
		garageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []model.TemporaryOverride
	for rows.Next() {
		var o model.TemporaryOverride
		if err := rows.Scan(&o.ID, &o.GarageID, &o.Action, &o.Reason, &o.CreatedBy, &o.CreatedAt, &o.OverrideUntil); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// ExpireOverride rewrites an override's deadline to at, which cancels
// it. Rows whose deadline already passed are left alone.
func (db *DB) ExpireOverride(ctx context.Context, overrideID int64, at time.Time) error {
	_, err := db.ExecContext(ctx, `
		UPDATE temporary_overrides
		SET override_until = ?
		WHERE id = ? AND override_until > ?`,
		at, overrideID, at,
	)
	if err != nil {
		return fmt.Errorf("expire override %d: %w", overrideID, err)
	}
	return nil
}

// PurgeExpiredOverrides deletes override rows whose deadline passed more
// than olderThan ago. Only the audit retention job calls this; with
// retention disabled every row is kept forever.
func (db *DB) PurgeExpiredOverrides(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := db.ExecContext(ctx,
		`DELETE FROM temporary_overrides WHERE override_until < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired overrides: %w", err)
	}
	return res.RowsAffected()
}
