package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkhub/internal/model"
)

// The test week: 2026-08-24 is a Monday, 2026-08-29 a Saturday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, 8, day, hour, minute, 0, 0, time.UTC)
}

func weekdaySchedule() *model.WeeklySchedule {
	return &model.WeeklySchedule{
		GarageID:    1,
		OpeningTime: "09:00",
		ClosingTime: "18:00",
		OperatingDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
	}
}

func openStatus() *model.OperationalStatus {
	return &model.OperationalStatus{GarageID: 1, Status: model.StatusOpen}
}

func TestResolveSchedulePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		st         *model.OperationalStatus
		sched      *model.WeeklySchedule
		ov         *model.TemporaryOverride
		now        time.Time
		wantStatus model.Status
		wantReason string
	}{
		{
			name:       "open within hours",
			st:         openStatus(),
			sched:      weekdaySchedule(),
			now:        at(24, 10, 0), // Monday 10:00
			wantStatus: model.StatusOpen,
			wantReason: "within operating hours",
		},
		{
			name:       "open before opening",
			st:         openStatus(),
			sched:      weekdaySchedule(),
			now:        at(24, 8, 59),
			wantStatus: model.StatusClosed,
			wantReason: "outside operating hours",
		},
		{
			name:       "closing minute is exclusive",
			st:         openStatus(),
			sched:      weekdaySchedule(),
			now:        at(24, 18, 0),
			wantStatus: model.StatusClosed,
			wantReason: "outside operating hours",
		},
		{
			name:       "opening minute is inclusive",
			st:         openStatus(),
			sched:      weekdaySchedule(),
			now:        at(24, 9, 0),
			wantStatus: model.StatusOpen,
			wantReason: "within operating hours",
		},
		{
			name:       "not an operating day",
			st:         openStatus(),
			sched:      weekdaySchedule(),
			now:        at(29, 10, 0), // Saturday 10:00
			wantStatus: model.StatusClosed,
			wantReason: "not an operating day",
		},
		{
			name: "24/7 ignores hours and days",
			st:   openStatus(),
			sched: &model.WeeklySchedule{
				GarageID: 1, Is247: true,
				OpeningTime: "09:00", ClosingTime: "18:00",
			},
			now:        at(29, 3, 0), // Saturday 03:00
			wantStatus: model.StatusOpen,
			wantReason: "open 24/7",
		},
		{
			name: "overnight window open after opening",
			st:   openStatus(),
			sched: &model.WeeklySchedule{
				GarageID: 1, OpeningTime: "22:00", ClosingTime: "06:00",
				OperatingDays: model.AllWeekdays,
			},
			now:        at(24, 23, 30),
			wantStatus: model.StatusOpen,
			wantReason: "within operating hours",
		},
		{
			name: "overnight window open past midnight",
			st:   openStatus(),
			sched: &model.WeeklySchedule{
				GarageID: 1, OpeningTime: "22:00", ClosingTime: "06:00",
				OperatingDays: model.AllWeekdays,
			},
			now:        at(25, 2, 0), // Tuesday 02:00
			wantStatus: model.StatusOpen,
			wantReason: "within operating hours",
		},
		{
			name: "overnight window closed midday",
			st:   openStatus(),
			sched: &model.WeeklySchedule{
				GarageID: 1, OpeningTime: "22:00", ClosingTime: "06:00",
				OperatingDays: model.AllWeekdays,
			},
			now:        at(24, 12, 0),
			wantStatus: model.StatusClosed,
			wantReason: "outside operating hours",
		},
		{
			name: "equal opening and closing is closed all day",
			st:   openStatus(),
			sched: &model.WeeklySchedule{
				GarageID: 1, OpeningTime: "09:00", ClosingTime: "09:00",
				OperatingDays: model.AllWeekdays,
			},
			now:        at(24, 9, 0),
			wantStatus: model.StatusClosed,
			wantReason: "outside operating hours",
		},
		{
			name: "empty operating days closes every day",
			st:   openStatus(),
			sched: &model.WeeklySchedule{
				GarageID: 1, OpeningTime: "09:00", ClosingTime: "18:00",
			},
			now:        at(24, 10, 0),
			wantStatus: model.StatusClosed,
			wantReason: "not an operating day",
		},
		{
			name:       "manual closed wins over schedule",
			st:         &model.OperationalStatus{GarageID: 1, Status: model.StatusClosed, Reason: "renovation"},
			sched:      weekdaySchedule(),
			now:        at(24, 10, 0),
			wantStatus: model.StatusClosed,
			wantReason: "renovation",
		},
		{
			name:       "maintenance wins over schedule",
			st:         &model.OperationalStatus{GarageID: 1, Status: model.StatusMaintenance, Reason: "lift repair"},
			sched:      &model.WeeklySchedule{GarageID: 1, Is247: true, OpeningTime: "00:00", ClosingTime: "00:00"},
			now:        at(24, 10, 0),
			wantStatus: model.StatusMaintenance,
			wantReason: "lift repair",
		},
		{
			name:       "emergency closed wins over schedule",
			st:         &model.OperationalStatus{GarageID: 1, Status: model.StatusEmergencyClosed, Reason: "flooding"},
			sched:      &model.WeeklySchedule{GarageID: 1, Is247: true, OpeningTime: "00:00", ClosingTime: "00:00"},
			now:        at(24, 10, 0),
			wantStatus: model.StatusEmergencyClosed,
			wantReason: "flooding",
		},
		{
			name:  "force open override beats schedule closure",
			st:    openStatus(),
			sched: weekdaySchedule(),
			ov: &model.TemporaryOverride{
				ID: 1, GarageID: 1, Action: model.OverrideForceOpen,
				CreatedAt: at(29, 9, 0), OverrideUntil: at(29, 23, 59),
			},
			now:        at(29, 10, 0), // Saturday: schedule says closed
			wantStatus: model.StatusOpen,
		},
		{
			name:  "force closed override beats manual open",
			st:    openStatus(),
			sched: &model.WeeklySchedule{GarageID: 1, Is247: true, OpeningTime: "00:00", ClosingTime: "00:00"},
			ov: &model.TemporaryOverride{
				ID: 2, GarageID: 1, Action: model.OverrideForceClosed,
				CreatedAt: at(24, 9, 0), OverrideUntil: at(24, 20, 0),
			},
			now:        at(24, 10, 0),
			wantStatus: model.StatusClosed,
		},
		{
			name:  "force open override beats emergency closed",
			st:    &model.OperationalStatus{GarageID: 1, Status: model.StatusEmergencyClosed, Reason: "flooding"},
			sched: weekdaySchedule(),
			ov: &model.TemporaryOverride{
				ID: 3, GarageID: 1, Action: model.OverrideForceOpen,
				CreatedAt: at(24, 9, 0), OverrideUntil: at(24, 20, 0),
			},
			now:        at(24, 10, 0),
			wantStatus: model.StatusOpen,
		},
		{
			name:  "expired override has no effect",
			st:    openStatus(),
			sched: weekdaySchedule(),
			ov: &model.TemporaryOverride{
				ID: 4, GarageID: 1, Action: model.OverrideForceOpen,
				CreatedAt: at(28, 9, 0), OverrideUntil: at(29, 9, 0),
			},
			now:        at(29, 10, 0), // Saturday, override already over
			wantStatus: model.StatusClosed,
			wantReason: "not an operating day",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := resolve(1, tt.st, tt.sched, tt.ov, tt.now)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			if tt.wantReason != "" && res.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", res.Reason, tt.wantReason)
			}
			if !res.Status.Valid() {
				t.Errorf("resolution produced unknown status %q", res.Status)
			}
		})
	}
}

func TestResolveTotalOverAllStatuses(t *testing.T) {
	// Whatever the rows say, resolution lands on one of the four
	// statuses for every hour of the week.
	sched := weekdaySchedule()
	for _, manual := range []model.Status{
		model.StatusOpen, model.StatusClosed, model.StatusMaintenance, model.StatusEmergencyClosed,
	} {
		st := &model.OperationalStatus{GarageID: 1, Status: manual, Reason: "x"}
		for day := 24; day <= 30; day++ {
			for hour := 0; hour < 24; hour++ {
				res, err := resolve(1, st, sched, nil, at(day, hour, 0))
				if err != nil {
					t.Fatalf("resolve(%s, day %d, hour %d): %v", manual, day, hour, err)
				}
				if !res.Status.Valid() {
					t.Fatalf("invalid status %q", res.Status)
				}
				if res.Reason == "" {
					t.Fatalf("empty reason for %s at day %d hour %d", manual, day, hour)
				}
			}
		}
	}
}

// fakeStore is an in-memory ReadStore for resolver-level tests.
type fakeStore struct {
	statuses  map[int64]model.OperationalStatus
	schedules map[int64]model.WeeklySchedule
	overrides map[int64]model.TemporaryOverride
}

func (f *fakeStore) GetStatus(_ context.Context, id int64) (*model.OperationalStatus, error) {
	if s, ok := f.statuses[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeStore) GetSchedule(_ context.Context, id int64) (*model.WeeklySchedule, error) {
	if s, ok := f.schedules[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (f *fakeStore) ActiveOverride(_ context.Context, id int64, now time.Time) (*model.TemporaryOverride, error) {
	if o, ok := f.overrides[id]; ok && o.ActiveAt(now) {
		return &o, nil
	}
	return nil, nil
}

func (f *fakeStore) GetStatuses(_ context.Context, ids []int64) (map[int64]model.OperationalStatus, error) {
	out := make(map[int64]model.OperationalStatus)
	for _, id := range ids {
		if s, ok := f.statuses[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStore) GetSchedules(_ context.Context, ids []int64) (map[int64]model.WeeklySchedule, error) {
	out := make(map[int64]model.WeeklySchedule)
	for _, id := range ids {
		if s, ok := f.schedules[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveOverrides(_ context.Context, ids []int64, now time.Time) (map[int64]model.TemporaryOverride, error) {
	out := make(map[int64]model.TemporaryOverride)
	for _, id := range ids {
		if o, ok := f.overrides[id]; ok && o.ActiveAt(now) {
			out[id] = o
		}
	}
	return out, nil
}

func TestResolverNotFound(t *testing.T) {
	r := NewResolver(&fakeStore{
		statuses:  map[int64]model.OperationalStatus{},
		schedules: map[int64]model.WeeklySchedule{},
	})

	_, err := r.Resolve(context.Background(), 42, at(24, 10, 0))
	if err == nil {
		t.Fatal("expected error for uninitialized garage")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveAll(t *testing.T) {
	store := &fakeStore{
		statuses: map[int64]model.OperationalStatus{
			1: {GarageID: 1, Status: model.StatusOpen},
			2: {GarageID: 2, Status: model.StatusClosed, Reason: "renovation"},
		},
		schedules: map[int64]model.WeeklySchedule{
			1: *weekdaySchedule(),
			2: *weekdaySchedule(),
		},
		overrides: map[int64]model.TemporaryOverride{},
	}
	r := NewResolver(store)

	res, err := r.ResolveAll(context.Background(), []int64{1, 2}, at(24, 10, 0))
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(res))
	}
	if res[1].Status != model.StatusOpen {
		t.Errorf("garage 1 = %s, want open", res[1].Status)
	}
	if res[2].Status != model.StatusClosed || res[2].Reason != "renovation" {
		t.Errorf("garage 2 = %s (%s), want closed/renovation", res[2].Status, res[2].Reason)
	}

	// A garage without rows fails the batch instead of being skipped.
	if _, err := r.ResolveAll(context.Background(), []int64{1, 99}, at(24, 10, 0)); err == nil {
		t.Error("expected error for uninitialized garage in batch")
	}
}

// End-to-end scenario: weekday garage, Saturday closure, force-open
// override, lapse back after expiry.
func TestWeekendOverrideScenario(t *testing.T) {
	store := &fakeStore{
		statuses:  map[int64]model.OperationalStatus{1: {GarageID: 1, Status: model.StatusOpen}},
		schedules: map[int64]model.WeeklySchedule{1: *weekdaySchedule()},
		overrides: map[int64]model.TemporaryOverride{},
	}
	r := NewResolver(store)
	ctx := context.Background()

	saturdayMorning := at(29, 10, 0)

	res, err := r.Resolve(ctx, 1, saturdayMorning)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusClosed || res.Reason != "not an operating day" {
		t.Fatalf("before override: got %s (%s)", res.Status, res.Reason)
	}

	store.overrides[1] = model.TemporaryOverride{
		ID: 1, GarageID: 1, Action: model.OverrideForceOpen,
		CreatedAt: saturdayMorning, OverrideUntil: at(29, 23, 59),
	}

	res, err = r.Resolve(ctx, 1, at(29, 12, 0))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusOpen {
		t.Fatalf("with override: got %s (%s)", res.Status, res.Reason)
	}

	// Sunday 00:30, past the deadline: back to the schedule layer.
	res, err = r.Resolve(ctx, 1, at(30, 0, 30))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != model.StatusClosed {
		t.Fatalf("after expiry: got %s (%s)", res.Status, res.Reason)
	}
}
