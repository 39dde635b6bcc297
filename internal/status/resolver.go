// Package status implements the garage operational status engine: a
// pure point-in-time resolver over three persisted row kinds (manual
// status, weekly schedule, temporary overrides) and the validated
// mutators that write them.
package status

import (
	"context"
	"fmt"
	"time"

	"parkhub/internal/metrics"
	"parkhub/internal/model"
)

// ReadStore is the read side of the three per-garage stores.
// Implementations return nil (not an error) for missing rows; the
// resolver turns a missing status or schedule into ErrNotFound.
type ReadStore interface {
	GetStatus(ctx context.Context, garageID int64) (*model.OperationalStatus, error)
	GetSchedule(ctx context.Context, garageID int64) (*model.WeeklySchedule, error)
	ActiveOverride(ctx context.Context, garageID int64, now time.Time) (*model.TemporaryOverride, error)

	GetStatuses(ctx context.Context, garageIDs []int64) (map[int64]model.OperationalStatus, error)
	GetSchedules(ctx context.Context, garageIDs []int64) (map[int64]model.WeeklySchedule, error)
	ActiveOverrides(ctx context.Context, garageIDs []int64, now time.Time) (map[int64]model.TemporaryOverride, error)
}

// Resolution is the effective status of a garage at one instant.
type Resolution struct {
	GarageID int64        `json:"garage_id"`
	Status   model.Status `json:"status"`
	Reason   string       `json:"reason"`
}

// Open reports whether the garage admits new bookings.
func (r Resolution) Open() bool {
	return r.Status == model.StatusOpen
}

// Resolver derives effective status on demand. It holds no state and
// takes the clock as an argument, so expiry and schedule transitions
// need no timers: they fall out of comparing stored rows against now.
type Resolver struct {
	store ReadStore
}

// NewResolver creates a resolver over the given store.
func NewResolver(store ReadStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve computes the effective status of one garage at now.
func (r *Resolver) Resolve(ctx context.Context, garageID int64, now time.Time) (Resolution, error) {
	st, err := r.store.GetStatus(ctx, garageID)
	if err != nil {
		return Resolution{}, err
	}
	sched, err := r.store.GetSchedule(ctx, garageID)
	if err != nil {
		return Resolution{}, err
	}
	if st == nil || sched == nil {
		return Resolution{}, fmt.Errorf("garage %d: %w", garageID, ErrNotFound)
	}
	ov, err := r.store.ActiveOverride(ctx, garageID, now)
	if err != nil {
		return Resolution{}, err
	}

	res, err := resolve(garageID, st, sched, ov, now)
	if err != nil {
		return Resolution{}, err
	}
	metrics.IncResolve(string(res.Status))
	return res, nil
}

// ResolveAll computes effective statuses for many garages with one
// fetch per store, for dashboard list views. Garages missing their
// status or schedule row fail the whole call with ErrNotFound rather
// than being silently skipped.
func (r *Resolver) ResolveAll(ctx context.Context, garageIDs []int64, now time.Time) (map[int64]Resolution, error) {
	statuses, err := r.store.GetStatuses(ctx, garageIDs)
	if err != nil {
		return nil, err
	}
	schedules, err := r.store.GetSchedules(ctx, garageIDs)
	if err != nil {
		return nil, err
	}
	overrides, err := r.store.ActiveOverrides(ctx, garageIDs, now)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]Resolution, len(garageIDs))
	for _, id := range garageIDs {
		st, okStatus := statuses[id]
		sched, okSched := schedules[id]
		if !okStatus || !okSched {
			return nil, fmt.Errorf("garage %d: %w", id, ErrNotFound)
		}
		var ov *model.TemporaryOverride
		if o, ok := overrides[id]; ok {
			ov = &o
		}
		res, err := resolve(id, &st, &sched, ov, now)
		if err != nil {
			return nil, err
		}
		metrics.IncResolve(string(res.Status))
		out[id] = res
	}
	return out, nil
}

// resolve is the pure precedence function. First match wins:
//
//  1. an unexpired override forces open or closed
//  2. maintenance / emergency closed hold over the schedule
//  3. manual closed
//  4. manual open defers to the weekly schedule
func resolve(garageID int64, st *model.OperationalStatus, sched *model.WeeklySchedule, ov *model.TemporaryOverride, now time.Time) (Resolution, error) {
	if ov != nil && ov.ActiveAt(now) {
		effective := model.StatusOpen
		if ov.Action == model.OverrideForceClosed {
			effective = model.StatusClosed
		}
		return Resolution{
			GarageID: garageID,
			Status:   effective,
			Reason:   fmt.Sprintf("temporary override until %s", ov.OverrideUntil.Format(time.RFC3339)),
		}, nil
	}

	switch st.Status {
	case model.StatusMaintenance, model.StatusEmergencyClosed, model.StatusClosed:
		return Resolution{GarageID: garageID, Status: st.Status, Reason: st.Reason}, nil
	}

	if sched.Is247 {
		return Resolution{GarageID: garageID, Status: model.StatusOpen, Reason: "open 24/7"}, nil
	}
	if !sched.OperatesOn(now.Weekday()) {
		return Resolution{GarageID: garageID, Status: model.StatusClosed, Reason: "not an operating day"}, nil
	}

	open, err := withinWindow(sched.OpeningTime, sched.ClosingTime, now)
	if err != nil {
		return Resolution{}, fmt.Errorf("garage %d: %w", garageID, err)
	}
	if open {
		return Resolution{GarageID: garageID, Status: model.StatusOpen, Reason: "within operating hours"}, nil
	}
	return Resolution{GarageID: garageID, Status: model.StatusClosed, Reason: "outside operating hours"}, nil
}

// withinWindow tests now's time-of-day against [opening, closing). An
// opening later than the closing is an overnight window and wraps past
// midnight; opening equal to closing is an empty window (closed all
// day, the degenerate schedule the mutator warns about).
func withinWindow(opening, closing string, now time.Time) (bool, error) {
	o, err := model.ParseTimeOfDay(opening)
	if err != nil {
		return false, err
	}
	c, err := model.ParseTimeOfDay(closing)
	if err != nil {
		return false, err
	}
	tod := model.MinutesOfDay(now)

	if o > c {
		return tod >= o || tod < c, nil
	}
	return tod >= o && tod < c, nil
}
