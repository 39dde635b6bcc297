package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the manual operational status of a garage.
type Status string

const (
	StatusOpen            Status = "open"
	StatusClosed          Status = "closed"
	StatusMaintenance     Status = "maintenance"
	StatusEmergencyClosed Status = "emergency_closed"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusMaintenance, StatusEmergencyClosed:
		return true
	}
	return false
}

// OverrideAction is the forced status of a temporary override.
type OverrideAction string

const (
	OverrideForceOpen   OverrideAction = "force_open"
	OverrideForceClosed OverrideAction = "force_closed"
)

// Valid reports whether a is a known override action.
func (a OverrideAction) Valid() bool {
	return a == OverrideForceOpen || a == OverrideForceClosed
}

// OperationalStatus is the current admin-set status of a garage.
// Exactly one row exists per initialized garage; every change is also
// appended to the history table.
type OperationalStatus struct {
	GarageID       int64     `json:"garage_id"`
	Status         Status    `json:"status"`
	Reason         string    `json:"reason"`
	ChangedBy      int64     `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
	ForceCloseUsed bool      `json:"force_close_used"`
	Version        int64     `json:"-"`
}

// StatusHistoryEntry is an append-only audit record of a status change.
type StatusHistoryEntry struct {
	ID             int64     `json:"id"`
	GarageID       int64     `json:"garage_id"`
	Status         Status    `json:"status"`
	Reason         string    `json:"reason"`
	ChangedBy      int64     `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
	ForceCloseUsed bool      `json:"force_close_used"`
}

// WeeklySchedule is the recurring operating window of a garage.
// One row per garage, replaced in place. Times are "HH:MM" local
// time-of-day; an opening later than the closing means an overnight
// window that wraps past midnight.
type WeeklySchedule struct {
	GarageID      int64          `json:"garage_id"`
	Is247         bool           `json:"is_24_7"`
	OpeningTime   string         `json:"opening_time"`
	ClosingTime   string         `json:"closing_time"`
	OperatingDays []time.Weekday `json:"operating_days"`
	Version       int64          `json:"-"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// OperatesOn reports whether d is an operating day.
func (s *WeeklySchedule) OperatesOn(d time.Weekday) bool {
	for _, day := range s.OperatingDays {
		if day == d {
			return true
		}
	}
	return false
}

// TemporaryOverride forces a garage open or closed until a deadline.
// Rows are append-only; cancellation rewrites override_until to the
// cancellation instant and the row stays for audit.
type TemporaryOverride struct {
	ID            int64          `json:"id"`
	GarageID      int64          `json:"garage_id"`
	Action        OverrideAction `json:"action"`
	Reason        string         `json:"reason"`
	CreatedBy     int64          `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	OverrideUntil time.Time      `json:"override_until"`
}

// ActiveAt reports whether the override is still in effect at now.
func (o *TemporaryOverride) ActiveAt(now time.Time) bool {
	return o.OverrideUntil.After(now)
}

// Garage is the minimal garage record the status engine needs.
// Full garage management lives in the marketplace backend.
type Garage struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Default schedule applied when a garage is initialized.
const (
	DefaultOpeningTime = "09:00"
	DefaultClosingTime = "22:00"
)

// AllWeekdays lists every weekday, Sunday first to match time.Weekday.
var AllWeekdays = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

var dayNames = map[time.Weekday]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

var daysByName = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// FormatDays encodes weekdays as a comma-separated list ("mon,tue,fri").
// The encoding is stable: days are emitted in week order regardless of
// input order, duplicates collapse.
func FormatDays(days []time.Weekday) string {
	present := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		present[d] = true
	}
	parts := make([]string, 0, len(present))
	for _, d := range AllWeekdays {
		if present[d] {
			parts = append(parts, dayNames[d])
		}
	}
	return strings.Join(parts, ",")
}

// ParseDays decodes a comma-separated day list. An empty string yields
// an empty set, which is a legal schedule (closed every day).
func ParseDays(s string) ([]time.Weekday, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var days []time.Weekday
	seen := make(map[time.Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		d, ok := daysByName[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

// ParseTimeOfDay parses "HH:MM" into minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// MinutesOfDay returns t's time-of-day as minutes since midnight.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
