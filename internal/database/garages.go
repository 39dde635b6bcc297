package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parkhub/internal/config"
	"parkhub/internal/model"
)

// SyncGaragesFromConfig applies garages.yaml to the database. It
// upserts garage records, marks garages missing from the config
// inactive, and initializes status/schedule rows for new garages.
func (db *DB) SyncGaragesFromConfig(ctx context.Context, cfg *config.GaragesConfig) error {
	if cfg == nil {
		return fmt.Errorf("garages config is nil")
	}

	now := time.Now()
	seen := make(map[int64]struct{})

	for _, g := range cfg.Garages {
		// Preserve created_at if the garage already exists.
		_, err := db.ExecContext(ctx, `
			INSERT INTO garages (id, name, address, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, COALESCE((SELECT created_at FROM garages WHERE id = ?), ?), ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				address = excluded.address,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			g.ID, g.Name, g.Address, g.IsActive, g.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync garage %d: %w", g.ID, err)
		}
		seen[g.ID] = struct{}{}
	}

	// Deactivate garages that disappeared from config.
	rows, err := db.QueryContext(ctx, `SELECT id FROM garages`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := db.ExecContext(ctx, `UPDATE garages SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate garage %d: %w", id, err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	return db.EnsureGarageDefaults(ctx)
}

// EnsureGarageDefaults seeds the per-garage status and schedule rows
// for every active garage that lacks them: status OPEN with a history
// seed, schedule 09:00-22:00 all seven days, not 24/7. This is the one
// initialization path; after it runs, a missing row is a defect.
func (db *DB) EnsureGarageDefaults(ctx context.Context) error {
	garages, err := db.ListActiveGarages(ctx)
	if err != nil {
		return fmt.Errorf("list garages: %w", err)
	}

	now := time.Now()
	for _, g := range garages {
		st, err := db.GetStatus(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("check status: %w", err)
		}
		if st == nil {
			if err := db.seedStatus(ctx, g.ID, now); err != nil {
				return fmt.Errorf("seed status for garage %d: %w", g.ID, err)
			}
		}

		sched, err := db.GetSchedule(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("check schedule: %w", err)
		}
		if sched == nil {
			if err := db.seedSchedule(ctx, g.ID, now); err != nil {
				return fmt.Errorf("seed schedule for garage %d: %w", g.ID, err)
			}
		}
	}
	return nil
}

func (db *DB) seedStatus(ctx context.Context, garageID int64, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO garage_status (garage_id, status, reason, changed_by, changed_at, force_close_used)
		VALUES (?, ?, '', 0, ?, 0)`,
		garageID, model.StatusOpen, now,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO garage_status_history (garage_id, status, reason, changed_by, changed_at, force_close_used)
		VALUES (?, ?, 'initialized', 0, ?, 0)`,
		garageID, model.StatusOpen, now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) seedSchedule(ctx context.Context, garageID int64, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO weekly_schedules (garage_id, is_24_7, opening_time, closing_time, operating_days, updated_at)
		VALUES (?, 0, ?, ?, ?, ?)`,
		garageID, model.DefaultOpeningTime, model.DefaultClosingTime,
		model.FormatDays(model.AllWeekdays), now,
	)
	return err
}

// ListActiveGarages returns all active garage records.
func (db *DB) ListActiveGarages(ctx context.Context) ([]model.Garage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, COALESCE(address, ''), is_active, created_at, updated_at
		FROM garages
		WHERE is_active = 1
		ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active garages: %w", err)
	}
	defer rows.Close()

	var garages []model.Garage
	for rows.Next() {
		var g model.Garage
		if err := rows.Scan(&g.ID, &g.Name, &g.Address, &g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		garages = append(garages, g)
	}
	return garages, rows.Err()
}

// GetGarage returns a garage record, or nil if unknown.
func (db *DB) GetGarage(ctx context.Context, garageID int64) (*model.Garage, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(address, ''), is_active, created_at, updated_at
		FROM garages
		WHERE id = ?`,
		garageID,
	)
	var g model.Garage
	err := row.Scan(&g.ID, &g.Name, &g.Address, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get garage %d: %w", garageID, err)
	}
	return &g, nil
}

// CreateGarage inserts a garage and initializes its status rows.
func (db *DB) CreateGarage(ctx context.Context, g *model.Garage) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO garages (name, address, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		g.Name, g.Address, g.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("create garage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = id
	g.CreatedAt = now
	g.UpdatedAt = now

	if err := db.seedStatus(ctx, id, now); err != nil {
		return fmt.Errorf("seed status: %w", err)
	}
	if err := db.seedSchedule(ctx, id, now); err != nil {
		return fmt.Errorf("seed schedule: %w", err)
	}
	return nil
}
