package database

import (
	"context"
	"database/sql"
	"fmt"

	"parkhub/internal/model"
)

func scanSchedule(row interface{ Scan(...interface{}) error }) (*model.WeeklySchedule, error) {
	var s model.WeeklySchedule
	var days string
	if err := row.Scan(&s.GarageID, &s.Is247, &s.OpeningTime, &s.ClosingTime, &days, &s.Version, &s.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := model.ParseDays(days)
	if err != nil {
		return nil, fmt.Errorf("garage %d: malformed operating_days: %w", s.GarageID, err)
	}
	s.OperatingDays = parsed
	return &s, nil
}

// GetSchedule returns the weekly schedule for a garage, or nil if the
// garage was never initialized.
func (db *DB) GetSchedule(ctx context.Context, garageID int64) (*model.WeeklySchedule, error) {
	row := db.QueryRowContext(ctx, `
		SELECT garage_id, is_24_7, opening_time, closing_time, operating_days, version, updated_at
		FROM weekly_schedules
		WHERE garage_id = ?`,
		garageID,
	)
	s, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule for garage %d: %w", garageID, err)
	}
	return s, nil
}

// GetSchedules returns weekly schedules for many garages in one query.
func (db *DB) GetSchedules(ctx context.Context, garageIDs []int64) (map[int64]model.WeeklySchedule, error) {
	out := make(map[int64]model.WeeklySchedule, len(garageIDs))
	if len(garageIDs) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT garage_id, is_24_7, opening_time, closing_time, operating_days, version, updated_at
		FROM weekly_schedules
		WHERE garage_id IN (%s)`, placeholders(len(garageIDs)))
	rows, err := db.QueryContext(ctx, query, int64Args(garageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out[s.GarageID] = *s
	}
	return out, rows.Err()
}

// ReplaceScheduleVersioned replaces the schedule row in place. The write
// only lands if the stored version still equals expectedVersion.
func (db *DB) ReplaceScheduleVersioned(ctx context.Context, s *model.WeeklySchedule, expectedVersion int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE weekly_schedules
		SET is_24_7 = ?, opening_time = ?, closing_time = ?, operating_days = ?, version = version + 1, updated_at = ?
		WHERE garage_id = ? AND version = ?`,
		s.Is247, s.OpeningTime, s.ClosingTime, model.FormatDays(s.OperatingDays), s.UpdatedAt,
		s.GarageID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("replace schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}
