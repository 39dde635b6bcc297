package status

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"parkhub/internal/database"
	"parkhub/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetStatus(ctx context.Context, id int64) (*model.OperationalStatus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OperationalStatus), args.Error(1)
}

func (m *mockStore) GetSchedule(ctx context.Context, id int64) (*model.WeeklySchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WeeklySchedule), args.Error(1)
}

func (m *mockStore) ActiveOverride(ctx context.Context, id int64, now time.Time) (*model.TemporaryOverride, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TemporaryOverride), args.Error(1)
}

func (m *mockStore) GetStatuses(ctx context.Context, ids []int64) (map[int64]model.OperationalStatus, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[int64]model.OperationalStatus), args.Error(1)
}

func (m *mockStore) GetSchedules(ctx context.Context, ids []int64) (map[int64]model.WeeklySchedule, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(map[int64]model.WeeklySchedule), args.Error(1)
}

func (m *mockStore) ActiveOverrides(ctx context.Context, ids []int64, now time.Time) (map[int64]model.TemporaryOverride, error) {
	args := m.Called(ctx, ids, now)
	return args.Get(0).(map[int64]model.TemporaryOverride), args.Error(1)
}

func (m *mockStore) UpdateStatusVersioned(ctx context.Context, s *model.OperationalStatus, v int64) error {
	return m.Called(ctx, s, v).Error(0)
}

func (m *mockStore) ReplaceScheduleVersioned(ctx context.Context, s *model.WeeklySchedule, v int64) error {
	return m.Called(ctx, s, v).Error(0)
}

func (m *mockStore) InsertOverride(ctx context.Context, o *model.TemporaryOverride) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockStore) ExpireOverride(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) ActiveBookingCount(ctx context.Context, id int64) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

var testClock = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func newTestMutator(store *mockStore, counter *mockCounter) *Mutator {
	logger := zerolog.New(io.Discard)
	m := NewMutator(store, counter, nil, logger)
	m.now = func() time.Time { return testClock }
	return m
}

func currentOpen(version int64) *model.OperationalStatus {
	return &model.OperationalStatus{GarageID: 1, Status: model.StatusOpen, Version: version}
}

func TestSetStatusRequiresReason(t *testing.T) {
	m := newTestMutator(new(mockStore), new(mockCounter))

	err := m.SetStatus(context.Background(), 1, model.StatusClosed, "   ", 7, false)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	// Transition to open does not need a reason; nothing else is
	// mocked, so only the validation path is exercised here.
	err = m.SetStatus(context.Background(), 1, model.Status("broken"), "x", 7, false)
	assert.ErrorAs(t, err, &verr)
}

func TestSetStatusBlockedByActiveBookings(t *testing.T) {
	store := new(mockStore)
	counter := new(mockCounter)
	m := newTestMutator(store, counter)
	ctx := context.Background()

	store.On("GetStatus", mock.Anything, int64(1)).Return(currentOpen(1), nil).Once()
	counter.On("ActiveBookingCount", mock.Anything, int64(1)).Return(2, nil).Once()

	err := m.SetStatus(ctx, 1, model.StatusClosed, "cleaning", 7, false)

	var abErr *ActiveBookingsError
	assert.ErrorAs(t, err, &abErr)
	assert.Equal(t, 2, abErr.Count)
	// Nothing was written.
	store.AssertNotCalled(t, "UpdateStatusVersioned", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
	counter.AssertExpectations(t)
}

func TestSetStatusForceCloseSkipsGate(t *testing.T) {
	store := new(mockStore)
	counter := new(mockCounter)
	m := newTestMutator(store, counter)
	ctx := context.Background()

	store.On("GetStatus", mock.Anything, int64(1)).Return(currentOpen(3), nil).Once()
	store.On("UpdateStatusVersioned", mock.Anything, mock.MatchedBy(func(s *model.OperationalStatus) bool {
		return s.Status == model.StatusClosed && s.ForceCloseUsed && s.ChangedBy == 7 && s.ChangedAt.Equal(testClock)
	}), int64(3)).Return(nil).Once()

	err := m.SetStatus(ctx, 1, model.StatusClosed, "event", 7, true)
	assert.NoError(t, err)

	counter.AssertNotCalled(t, "ActiveBookingCount", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestSetStatusToOpenSkipsGate(t *testing.T) {
	store := new(mockStore)
	counter := new(mockCounter)
	m := newTestMutator(store, counter)

	store.On("GetStatus", mock.Anything, int64(1)).
		Return(&model.OperationalStatus{GarageID: 1, Status: model.StatusClosed, Version: 2}, nil).Once()
	store.On("UpdateStatusVersioned", mock.Anything, mock.Anything, int64(2)).Return(nil).Once()

	err := m.SetStatus(context.Background(), 1, model.StatusOpen, "", 7, false)
	assert.NoError(t, err)
	counter.AssertNotCalled(t, "ActiveBookingCount", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestSetStatusNotFound(t *testing.T) {
	store := new(mockStore)
	m := newTestMutator(store, new(mockCounter))

	store.On("GetStatus", mock.Anything, int64(404)).Return(nil, nil).Once()

	err := m.SetStatus(context.Background(), 404, model.StatusOpen, "", 7, false)
	assert.ErrorIs(t, err, ErrNotFound)
	store.AssertExpectations(t)
}

func TestSetStatusRetriesOnceOnConflict(t *testing.T) {
	store := new(mockStore)
	m := newTestMutator(store, new(mockCounter))

	// First attempt loses the version race, second one lands.
	store.On("GetStatus", mock.Anything, int64(1)).Return(currentOpen(1), nil).Once()
	store.On("UpdateStatusVersioned", mock.Anything, mock.Anything, int64(1)).
		Return(database.ErrVersionConflict).Once()
	store.On("GetStatus", mock.Anything, int64(1)).Return(currentOpen(2), nil).Once()
	store.On("UpdateStatusVersioned", mock.Anything, mock.Anything, int64(2)).Return(nil).Once()

	err := m.SetStatus(context.Background(), 1, model.StatusClosed, "cleaning", 7, true)
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestSetStatusSurfacesConflictAfterRetry(t *testing.T) {
	store := new(mockStore)
	m := newTestMutator(store, new(mockCounter))

	store.On("GetStatus", mock.Anything, int64(1)).Return(currentOpen(1), nil).Twice()
	store.On("UpdateStatusVersioned", mock.Anything, mock.Anything, int64(1)).
		Return(database.ErrVersionConflict).Twice()

	err := m.SetStatus(context.Background(), 1, model.StatusClosed, "cleaning", 7, true)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	store.AssertExpectations(t)
}

func TestSetScheduleEmptyDaysNeedsAcknowledgement(t *testing.T) {
	m := newTestMutator(new(mockStore), new(mockCounter))

	_, err := m.SetSchedule(context.Background(), 1, ScheduleInput{
		OpeningTime: "09:00",
		ClosingTime: "18:00",
	})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestSetScheduleEmptyDaysAcknowledged(t *testing.T) {
	store := new(mockStore)
	m := newTestMutator(store, new(mockCounter))

	store.On("GetSchedule", mock.Anything, int64(1)).
		Return(&model.WeeklySchedule{GarageID: 1, Version: 1}, nil).Once()
	store.On("ReplaceScheduleVersioned", mock.Anything, mock.MatchedBy(func(s *model.WeeklySchedule) bool {
		return len(s.OperatingDays) == 0 && !s.Is247
	}), int64(1)).Return(nil).Once()

	warning, err := m.SetSchedule(context.Background(), 1, ScheduleInput{
		OpeningTime:          "09:00",
		ClosingTime:          "18:00",
		AcknowledgeEmptyDays: true,
	})
	assert.NoError(t, err)
	assert.Empty(t, warning)
	store.AssertExpectations(t)
}

func TestSetScheduleDegenerateWindowWarns(t *testing.T) {
	store := new(mockStore)
	m := newTestMutator(store, new(mockCounter))

	store.On("GetSchedule", mock.Anything, int64(1)).
		Return(&model.WeeklySchedule{GarageID: 1, Version: 4}, nil).Once()
	store.On("ReplaceScheduleVersioned", mock.Anything, mock.Anything, int64(4)).Return(nil).Once()

	warning, err := m.SetSchedule(context.Background(), 1, ScheduleInput{
		OpeningTime:   "09:00",
		ClosingTime:   "09:00",
		OperatingDays: []time.Weekday{time.Monday},
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, warning)
	store.AssertExpectations(t)
}

func TestSetScheduleRejectsMalformedTime(t *testing.T) {
	m := newTestMutator(new(mockStore), new(mockCounter))

	_, err := m.SetSchedule(context.Background(), 1, ScheduleInput{
		OpeningTime:   "nine",
		ClosingTime:   "18:00",
		OperatingDays: []time.Weekday{time.Monday},
	})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestApplyOverrideRejectsPastDeadline(t *testing.T) {
	m := newTestMutator(new(mockStore), new(mockCounter))

	err := m.ApplyOverride(context.Background(), 1, testClock.Add(-time.Minute), model.OverrideForceOpen, "x", 7)
	assert.ErrorIs(t, err, ErrInvalidOverrideWindow)

	err = m.ApplyOverride(context.Background(), 1, testClock, model.OverrideForceOpen, "x", 7)
	assert.ErrorIs(t, err, ErrInvalidOverrideWindow)
}

func TestApplyOverrideInserts(t *testing.T) {
	store := new(mockStore)
	m := newTestMutator(store, new(mockCounter))
	until := testClock.Add(4 * time.Hour)

	store.On("GetStatus", mock.Anything, int64(1)).Return(currentOpen(1), nil).Once()
	store.On("InsertOverride", mock.Anything, mock.MatchedBy(func(o *model.TemporaryOverride) bool {
		return o.GarageID == 1 && o.Action == model.OverrideForceClosed &&
			o.OverrideUntil.Equal(until) && o.CreatedAt.Equal(testClock) && o.CreatedBy == 7
	})).Return(nil).Once()

	err := m.ApplyOverride(context.Background(), 1, until, model.OverrideForceClosed, "street repaving", 7)
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestCancelOverrideNoopWhenNoneActive(t *testing.T) {
	store := new(mockStore)
	m := newTestMutator(store, new(mockCounter))

	store.On("ActiveOverride", mock.Anything, int64(1), testClock).Return(nil, nil).Once()

	err := m.CancelOverride(context.Background(), 1, 7)
	assert.NoError(t, err)
	store.AssertNotCalled(t, "ExpireOverride", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestCancelOverrideExpiresWinner(t *testing.T) {
	store := new(mockStore)
	m := newTestMutator(store, new(mockCounter))

	winner := &model.TemporaryOverride{ID: 9, GarageID: 1, Action: model.OverrideForceOpen, OverrideUntil: testClock.Add(time.Hour)}
	store.On("ActiveOverride", mock.Anything, int64(1), testClock).Return(winner, nil).Once()
	store.On("ExpireOverride", mock.Anything, int64(9), testClock).Return(nil).Once()

	err := m.CancelOverride(context.Background(), 1, 7)
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestSetStatusPropagatesCounterError(t *testing.T) {
	store := new(mockStore)
	counter := new(mockCounter)
	m := newTestMutator(store, counter)

	store.On("GetStatus", mock.Anything, int64(1)).Return(currentOpen(1), nil).Once()
	counter.On("ActiveBookingCount", mock.Anything, int64(1)).Return(0, errors.New("booking db down")).Once()

	err := m.SetStatus(context.Background(), 1, model.StatusMaintenance, "lift", 7, false)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConcurrencyConflict)
	store.AssertExpectations(t)
}
