// Package session stores the per-admin "currently selected garage"
// used by the dashboard. The selection is request/session scoped; the
// status engine itself never reads it.
package session

import (
	"context"

	"parkhub/internal/database"
)

// Repository is the session store. Implementations return (nil, nil)
// for a missing session.
type Repository interface {
	GetSession(ctx context.Context, adminID int64) (*database.AdminSession, error)
	SetSession(ctx context.Context, s *database.AdminSession) error
	ClearSession(ctx context.Context, adminID int64) error
}

// DBRepository keeps sessions in sqlite. Used as the failover target
// when redis is unavailable, or standalone when redis is not configured.
type DBRepository struct {
	db *database.DB
}

func NewDBRepository(db *database.DB) *DBRepository {
	return &DBRepository{db: db}
}

func (r *DBRepository) GetSession(ctx context.Context, adminID int64) (*database.AdminSession, error) {
	return r.db.GetAdminSession(ctx, adminID)
}

func (r *DBRepository) SetSession(ctx context.Context, s *database.AdminSession) error {
	return r.db.SetAdminSession(ctx, s)
}

func (r *DBRepository) ClearSession(ctx context.Context, adminID int64) error {
	return r.db.ClearAdminSession(ctx, adminID)
}
