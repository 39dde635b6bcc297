package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"parkhub/internal/database"
	"parkhub/internal/events"
	"parkhub/internal/metrics"
	"parkhub/internal/model"
)

// WriteStore is the store surface the mutator needs: the reads of
// ReadStore plus the versioned writers.
type WriteStore interface {
	ReadStore
	UpdateStatusVersioned(ctx context.Context, s *model.OperationalStatus, expectedVersion int64) error
	ReplaceScheduleVersioned(ctx context.Context, s *model.WeeklySchedule, expectedVersion int64) error
	InsertOverride(ctx context.Context, o *model.TemporaryOverride) error
	ExpireOverride(ctx context.Context, overrideID int64, at time.Time) error
}

// BookingCounter is the read-only query into the booking subsystem
// consulted as the close-safety gate.
type BookingCounter interface {
	ActiveBookingCount(ctx context.Context, garageID int64) (int, error)
}

// ScheduleInput is the admin-supplied replacement schedule.
type ScheduleInput struct {
	Is247         bool
	OpeningTime   string
	ClosingTime   string
	OperatingDays []time.Weekday

	// AcknowledgeEmptyDays must be set to accept an empty operating-day
	// set, which closes the garage every day.
	AcknowledgeEmptyDays bool
}

// Mutator performs the validated, transactional status writes. Each
// mutation is a read-decide-write sequence guarded by an optimistic
// version check; a detected lost update is retried once before being
// surfaced as ErrConcurrencyConflict.
type Mutator struct {
	store    WriteStore
	bookings BookingCounter
	bus      *events.EventBus
	logger   zerolog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewMutator creates a mutator. bus may be nil when nothing subscribes.
func NewMutator(store WriteStore, bookings BookingCounter, bus *events.EventBus, logger zerolog.Logger) *Mutator {
	return &Mutator{
		store:    store,
		bookings: bookings,
		bus:      bus,
		logger:   logger.With().Str("component", "status_mutator").Logger(),
		timeout:  5 * time.Second,
		now:      time.Now,
	}
}

// SetStatus changes the manual status of a garage. reason is required
// for any transition away from open. Unless forceClose is set, a
// transition to a non-open status is blocked while the garage has
// active bookings and nothing is written.
func (m *Mutator) SetStatus(ctx context.Context, garageID int64, newStatus model.Status, reason string, actorID int64, forceClose bool) error {
	if !newStatus.Valid() {
		return &ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", newStatus)}
	}
	reason = strings.TrimSpace(reason)
	if newStatus != model.StatusOpen && reason == "" {
		return &ValidationError{Field: "reason", Msg: "required when the garage is not open"}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.trySetStatus(ctx, garageID, newStatus, reason, actorID, forceClose)
	if errors.Is(err, ErrConcurrencyConflict) {
		metrics.IncConcurrencyConflict()
		m.logger.Warn().Int64("garage_id", garageID).Msg("status version conflict, retrying once")
		err = m.trySetStatus(ctx, garageID, newStatus, reason, actorID, forceClose)
		if errors.Is(err, ErrConcurrencyConflict) {
			metrics.IncConcurrencyConflict()
		}
	}
	if err != nil {
		return err
	}

	metrics.IncStatusChanged(string(newStatus))
	m.publish(events.TypeStatusChanged, statusChangedPayload{
		GarageID: garageID,
		Status:   newStatus,
		Reason:   reason,
		ActorID:  actorID,
		Forced:   forceClose,
	})
	m.logger.Info().
		Int64("garage_id", garageID).
		Str("status", string(newStatus)).
		Int64("actor_id", actorID).
		Bool("force_close", forceClose).
		Msg("garage status changed")
	return nil
}

func (m *Mutator) trySetStatus(ctx context.Context, garageID int64, newStatus model.Status, reason string, actorID int64, forceClose bool) error {
	cur, err := m.store.GetStatus(ctx, garageID)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("garage %d: %w", garageID, ErrNotFound)
	}

	if newStatus != model.StatusOpen && !forceClose {
		count, err := m.bookings.ActiveBookingCount(ctx, garageID)
		if err != nil {
			return fmt.Errorf("active booking count: %w", err)
		}
		if count > 0 {
			return &ActiveBookingsError{Count: count}
		}
	}

	next := model.OperationalStatus{
		GarageID:       garageID,
		Status:         newStatus,
		Reason:         reason,
		ChangedBy:      actorID,
		ChangedAt:      m.now(),
		ForceCloseUsed: forceClose,
	}
	err = m.store.UpdateStatusVersioned(ctx, &next, cur.Version)
	if errors.Is(err, database.ErrVersionConflict) {
		return ErrConcurrencyConflict
	}
	return err
}

// SetSchedule replaces the weekly schedule. Equal opening and closing
// times are accepted and surfaced as a warning (the garage is then
// closed all day); an empty operating-day set needs an explicit
// acknowledgement. The returned string is the warning, if any.
func (m *Mutator) SetSchedule(ctx context.Context, garageID int64, in ScheduleInput) (string, error) {
	sched, warning, err := m.validateSchedule(garageID, in)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err = m.tryReplaceSchedule(ctx, sched)
	if errors.Is(err, ErrConcurrencyConflict) {
		metrics.IncConcurrencyConflict()
		m.logger.Warn().Int64("garage_id", garageID).Msg("schedule version conflict, retrying once")
		err = m.tryReplaceSchedule(ctx, sched)
		if errors.Is(err, ErrConcurrencyConflict) {
			metrics.IncConcurrencyConflict()
		}
	}
	if err != nil {
		return "", err
	}

	m.publish(events.TypeScheduleReplaced, scheduleReplacedPayload{
		GarageID: garageID,
		Is247:    sched.Is247,
		Opening:  sched.OpeningTime,
		Closing:  sched.ClosingTime,
		Days:     model.FormatDays(sched.OperatingDays),
	})
	m.logger.Info().
		Int64("garage_id", garageID).
		Bool("is_24_7", sched.Is247).
		Str("days", model.FormatDays(sched.OperatingDays)).
		Msg("weekly schedule replaced")
	return warning, nil
}

func (m *Mutator) validateSchedule(garageID int64, in ScheduleInput) (*model.WeeklySchedule, string, error) {
	for _, d := range in.OperatingDays {
		if d < time.Sunday || d > time.Saturday {
			return nil, "", fmt.Errorf("%w: unknown weekday %d", ErrInvalidSchedule, d)
		}
	}

	opening := strings.TrimSpace(in.OpeningTime)
	closing := strings.TrimSpace(in.ClosingTime)
	warning := ""

	if in.Is247 {
		// Hours are ignored while 24/7; keep stored values well-formed.
		if opening == "" {
			opening = model.DefaultOpeningTime
		}
		if closing == "" {
			closing = model.DefaultClosingTime
		}
	}

	if _, err := model.ParseTimeOfDay(opening); err != nil {
		return nil, "", fmt.Errorf("%w: opening_time: %v", ErrInvalidSchedule, err)
	}
	if _, err := model.ParseTimeOfDay(closing); err != nil {
		return nil, "", fmt.Errorf("%w: closing_time: %v", ErrInvalidSchedule, err)
	}

	if !in.Is247 {
		if opening == closing {
			warning = "opening equals closing: the garage will be closed all day"
		}
		if len(in.OperatingDays) == 0 && !in.AcknowledgeEmptyDays {
			return nil, "", fmt.Errorf("%w: empty operating days close the garage every day; set acknowledge_empty_days to confirm", ErrInvalidSchedule)
		}
	}

	return &model.WeeklySchedule{
		GarageID:      garageID,
		Is247:         in.Is247,
		OpeningTime:   opening,
		ClosingTime:   closing,
		OperatingDays: in.OperatingDays,
		UpdatedAt:     m.now(),
	}, warning, nil
}

func (m *Mutator) tryReplaceSchedule(ctx context.Context, sched *model.WeeklySchedule) error {
	cur, err := m.store.GetSchedule(ctx, sched.GarageID)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("garage %d: %w", sched.GarageID, ErrNotFound)
	}

	err = m.store.ReplaceScheduleVersioned(ctx, sched, cur.Version)
	if errors.Is(err, database.ErrVersionConflict) {
		return ErrConcurrencyConflict
	}
	return err
}

// ApplyOverride appends a new temporary override. Prior overrides are
// left untouched; the newest active one wins at resolution time.
func (m *Mutator) ApplyOverride(ctx context.Context, garageID int64, until time.Time, action model.OverrideAction, reason string, actorID int64) error {
	if !action.Valid() {
		return &ValidationError{Field: "action", Msg: fmt.Sprintf("unknown override action %q", action)}
	}
	now := m.now()
	if !until.After(now) {
		return fmt.Errorf("%w: %s is not after %s", ErrInvalidOverrideWindow, until.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	// A garage without status rows was never initialized; refuse to
	// attach overrides to it.
	cur, err := m.store.GetStatus(ctx, garageID)
	if err != nil {
		return err
	}
	if cur == nil {
		return fmt.Errorf("garage %d: %w", garageID, ErrNotFound)
	}

	ov := model.TemporaryOverride{
		GarageID:      garageID,
		Action:        action,
		Reason:        strings.TrimSpace(reason),
		CreatedBy:     actorID,
		CreatedAt:     now,
		OverrideUntil: until,
	}
	if err := m.store.InsertOverride(ctx, &ov); err != nil {
		return err
	}

	metrics.IncOverrideOp("apply")
	m.publish(events.TypeOverrideApplied, overridePayload{
		GarageID: garageID,
		Action:   action,
		Until:    until,
		ActorID:  actorID,
	})
	m.logger.Info().
		Int64("garage_id", garageID).
		Str("action", string(action)).
		Time("until", until).
		Int64("actor_id", actorID).
		Msg("temporary override applied")
	return nil
}

// CancelOverride expires the currently-winning override by rewriting
// its deadline to now. Success with no effect when none is active.
func (m *Mutator) CancelOverride(ctx context.Context, garageID int64, actorID int64) error {
	now := m.now()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ov, err := m.store.ActiveOverride(ctx, garageID, now)
	if err != nil {
		return err
	}
	if ov == nil {
		m.logger.Debug().Int64("garage_id", garageID).Msg("cancel override: none active")
		return nil
	}

	if err := m.store.ExpireOverride(ctx, ov.ID, now); err != nil {
		return err
	}

	metrics.IncOverrideOp("cancel")
	m.publish(events.TypeOverrideCanceled, overridePayload{
		GarageID: garageID,
		Action:   ov.Action,
		Until:    now,
		ActorID:  actorID,
	})
	m.logger.Info().
		Int64("garage_id", garageID).
		Int64("override_id", ov.ID).
		Int64("actor_id", actorID).
		Msg("temporary override canceled")
	return nil
}

type statusChangedPayload struct {
	GarageID int64        `json:"garage_id"`
	Status   model.Status `json:"status"`
	Reason   string       `json:"reason"`
	ActorID  int64        `json:"actor_id"`
	Forced   bool         `json:"forced"`
}

type scheduleReplacedPayload struct {
	GarageID int64  `json:"garage_id"`
	Is247    bool   `json:"is_24_7"`
	Opening  string `json:"opening"`
	Closing  string `json:"closing"`
	Days     string `json:"days"`
}

type overridePayload struct {
	GarageID int64                `json:"garage_id"`
	Action   model.OverrideAction `json:"action"`
	Until    time.Time            `json:"until"`
	ActorID  int64                `json:"actor_id"`
}

func (m *Mutator) publish(eventType string, payload interface{}) {
	if m.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		return
	}
	m.bus.Publish(events.Event{Type: eventType, Payload: data})
}
