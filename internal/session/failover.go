package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"parkhub/internal/database"
)

const recoveryCheckInterval = time.Minute

// FailoverRepository fronts a primary (redis) repository with a sqlite
// fallback. After a primary failure every call goes straight to the
// fallback until a recovery probe, at most once per
// recoveryCheckInterval, sees the primary answer again.
type FailoverRepository struct {
	primary  Repository
	fallback Repository
	logger   zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverRepository(primary, fallback Repository, logger zerolog.Logger) *FailoverRepository {
	return &FailoverRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "session_failover").Logger(),
	}
}

// usePrimary reports whether the next call should try the primary.
func (r *FailoverRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) < recoveryCheckInterval {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverRepository) markDown(err error) {
	if r.isDown.CompareAndSwap(false, true) {
		r.logger.Warn().Err(err).Msg("primary session store down, using fallback")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverRepository) markUp() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("primary session store recovered")
	}
}

func (r *FailoverRepository) GetSession(ctx context.Context, adminID int64) (*database.AdminSession, error) {
	if r.usePrimary() {
		s, err := r.primary.GetSession(ctx, adminID)
		if err == nil {
			r.markUp()
			return s, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetSession(ctx, adminID)
}

func (r *FailoverRepository) SetSession(ctx context.Context, s *database.AdminSession) error {
	if r.usePrimary() {
		err := r.primary.SetSession(ctx, s)
		if err == nil {
			r.markUp()
			// Keep the fallback warm so a later failover still sees
			// the current selection.
			if ferr := r.fallback.SetSession(ctx, s); ferr != nil {
				r.logger.Warn().Err(ferr).Int64("admin_id", s.AdminID).Msg("fallback session write failed")
			}
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetSession(ctx, s)
}

func (r *FailoverRepository) ClearSession(ctx context.Context, adminID int64) error {
	if r.usePrimary() {
		err := r.primary.ClearSession(ctx, adminID)
		if err == nil {
			r.markUp()
			if ferr := r.fallback.ClearSession(ctx, adminID); ferr != nil {
				r.logger.Warn().Err(ferr).Int64("admin_id", adminID).Msg("fallback session clear failed")
			}
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearSession(ctx, adminID)
}
