package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"parkhub/internal/model"
)

// GetStatus returns the current status row for a garage, or nil if the
// garage was never initialized.
func (db *DB) GetStatus(ctx context.Context, garageID int64) (*model.OperationalStatus, error) {
	row := db.QueryRowContext(ctx, `
		SELECT garage_id, status, reason, changed_by, changed_at, force_close_used, version
		FROM garage_status
		WHERE garage_id = ?`,
		garageID,
	)
	var s model.OperationalStatus
	err := row.Scan(&s.GarageID, &s.Status, &s.Reason, &s.ChangedBy, &s.ChangedAt, &s.ForceCloseUsed, &s.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get status for garage %d: %w", garageID, err)
	}
	return &s, nil
}

// GetStatuses returns current status rows for many garages in one query.
// Garages without a row are absent from the map.
func (db *DB) GetStatuses(ctx context.Context, garageIDs []int64) (map[int64]model.OperationalStatus, error) {
	out := make(map[int64]model.OperationalStatus, len(garageIDs))
	if len(garageIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT garage_id, status, reason, changed_by, changed_at, force_close_used, version
		FROM garage_status
		WHERE garage_id IN (%s)`, placeholders(len(garageIDs)))
	rows, err := db.QueryContext(ctx, query, int64Args(garageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s model.OperationalStatus
		if err := rows.Scan(&s.GarageID, &s.Status, &s.Reason, &s.ChangedBy, &s.ChangedAt, &s.ForceCloseUsed, &s.Version); err != nil {
			return nil, err
		}
		out[s.GarageID] = s
	}
	return out, rows.Err()
}

// UpdateStatusVersioned replaces the current status row and appends a
// history entry in a single transaction. The write only lands if the
// stored version still equals expectedVersion; otherwise
// ErrVersionConflict is returned and nothing changes.
func (db *DB) UpdateStatusVersioned(ctx context.Context, s *model.OperationalStatus, expectedVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE garage_status
		SET status = ?, reason = ?, changed_by = ?, changed_at = ?, force_close_used = ?, version = version + 1
		WHERE garage_id = ? AND version = ?`,
		s.Status, s.Reason, s.ChangedBy, s.ChangedAt, s.ForceCloseUsed,
		s.GarageID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO garage_status_history (garage_id, status, reason, changed_by, changed_at, force_close_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.GarageID, s.Status, s.Reason, s.ChangedBy, s.ChangedAt, s.ForceCloseUsed,
	); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// GetStatusHistory returns the newest history entries for a garage.
func (db *DB) GetStatusHistory(ctx context.Context, garageID int64, limit int) ([]model.StatusHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, garage_id, status, reason, changed_by, changed_at, force_close_used
		FROM garage_status_history
		WHERE garage_id = ?
		ORDER BY changed_at DESC, id DESC
		LIMIT ?`,
		garageID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	defer rows.Close()

	var entries []model.StatusHistoryEntry
	for rows.Next() {
		var e model.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.GarageID, &e.Status, &e.Reason, &e.ChangedBy, &e.ChangedAt, &e.ForceCloseUsed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetAllStatusHistory returns every history entry ordered oldest first,
// for the report exporters.
func (db *DB) GetAllStatusHistory(ctx context.Context) ([]model.StatusHistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, garage_id, status, reason, changed_by, changed_at, force_close_used
		FROM garage_status_history
		ORDER BY changed_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("get all status history: %w", err)
	}
	defer rows.Close()

	var entries []model.StatusHistoryEntry
	for rows.Next() {
		var e model.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.GarageID, &e.Status, &e.Reason, &e.ChangedBy, &e.ChangedAt, &e.ForceCloseUsed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
