package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergencize-checkin-service/models"
)

func newCheckInFixture(t *testing.T, now time.Time) (*memStore, *fakeClock, InterfaceCheckInService) {
	t.Helper()
	store := newMemStore()
	clock := newFakeClock(now)
	svc := NewCheckInService(store, store, NewVerificationService(DefaultScoringPolicy),
		&fakeGeo{}, &fakeSecrets{}, clock, NewKeyedMutex())
	return store, clock, svc
}

func TestEnsurePendingCreatesOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	store, _, svc := newCheckInFixture(t, now)

	schedule := dailySchedule()
	require.NoError(t, store.PutSchedule(schedule))

	scheduledAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	first, created, err := svc.EnsurePending(schedule, scheduledAt)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.CheckInStatusPending, first.Status)
	assert.Equal(t, scheduledAt, first.ScheduledTime)

	// 再次调用返回同一个pending，不新建
	second, created, err := svc.EnsurePending(schedule, scheduledAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestSubmitOnTime(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)
	store, _, svc := newCheckInFixture(t, now)

	schedule := dailySchedule()
	schedule.GracePeriodMinutes = 15
	require.NoError(t, store.PutSchedule(schedule))

	checkIn := &models.CheckIn{
		ScheduleID:    schedule.ID,
		UserID:        schedule.UserID,
		Status:        models.CheckInStatusPending,
		ScheduledTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PutCheckIn(checkIn))

	result, err := svc.Submit(checkIn.ID, models.EvidencePayload{Message: "一切安好"},
		models.ResponseMeta{Channel: models.ChannelApp})
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusCompleted, result.Status)
	require.NotNil(t, result.SubmittedAt)
	assert.Equal(t, now, *result.SubmittedAt)
	require.NotNil(t, result.Verification)
	assert.True(t, result.Verification.Score > 0)
}

func TestSubmitWithinGraceIsCompleted(t *testing.T) {
	scheduled := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	// 宽限期15分钟，提交在第14分钟
	now := scheduled.Add(14 * time.Minute)
	store, _, svc := newCheckInFixture(t, now)

	schedule := dailySchedule()
	schedule.GracePeriodMinutes = 15
	require.NoError(t, store.PutSchedule(schedule))
	checkIn := &models.CheckIn{ScheduleID: schedule.ID, UserID: 1, Status: models.CheckInStatusPending, ScheduledTime: scheduled}
	require.NoError(t, store.PutCheckIn(checkIn))

	result, err := svc.Submit(checkIn.ID, models.EvidencePayload{}, models.ResponseMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusCompleted, result.Status)
}

func TestSubmitLate(t *testing.T) {
	scheduled := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	// 宽限期之后、最大迟到范围之内
	now := scheduled.Add(40 * time.Minute)
	store, _, svc := newCheckInFixture(t, now)

	schedule := dailySchedule()
	schedule.GracePeriodMinutes = 15
	schedule.AllowLateCheckIn = true
	schedule.MaxLateMinutes = 60
	require.NoError(t, store.PutSchedule(schedule))
	checkIn := &models.CheckIn{ScheduleID: schedule.ID, UserID: 1, Status: models.CheckInStatusPending, ScheduledTime: scheduled}
	require.NoError(t, store.PutCheckIn(checkIn))

	result, err := svc.Submit(checkIn.ID, models.EvidencePayload{}, models.ResponseMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusLate, result.Status)
}

func TestSubmitBeyondMaxLateRejected(t *testing.T) {
	scheduled := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := scheduled.Add(2 * time.Hour)
	store, _, svc := newCheckInFixture(t, now)

	schedule := dailySchedule()
	schedule.GracePeriodMinutes = 15
	schedule.AllowLateCheckIn = true
	schedule.MaxLateMinutes = 60
	require.NoError(t, store.PutSchedule(schedule))
	checkIn := &models.CheckIn{ScheduleID: schedule.ID, UserID: 1, Status: models.CheckInStatusPending, ScheduledTime: scheduled}
	require.NoError(t, store.PutCheckIn(checkIn))

	_, err := svc.Submit(checkIn.ID, models.EvidencePayload{}, models.ResponseMeta{})
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	// 拒绝后签到保持pending，等待升级流程处理
	stored, err := store.GetCheckIn(checkIn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusPending, stored.Status)
}

func TestSubmitLateDisallowed(t *testing.T) {
	scheduled := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := scheduled.Add(20 * time.Minute)
	store, _, svc := newCheckInFixture(t, now)

	schedule := dailySchedule()
	schedule.GracePeriodMinutes = 15
	schedule.AllowLateCheckIn = false
	require.NoError(t, store.PutSchedule(schedule))
	checkIn := &models.CheckIn{ScheduleID: schedule.ID, UserID: 1, Status: models.CheckInStatusPending, ScheduledTime: scheduled}
	require.NoError(t, store.PutCheckIn(checkIn))

	_, err := svc.Submit(checkIn.ID, models.EvidencePayload{}, models.ResponseMeta{})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestSubmitMissingRequiredFields(t *testing.T) {
	scheduled := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store, _, svc := newCheckInFixture(t, scheduled)

	schedule := dailySchedule()
	schedule.RequireLocation = true
	schedule.RequireSafeWord = true
	require.NoError(t, store.PutSchedule(schedule))
	checkIn := &models.CheckIn{ScheduleID: schedule.ID, UserID: 1, Status: models.CheckInStatusPending, ScheduledTime: scheduled}
	require.NoError(t, store.PutCheckIn(checkIn))

	_, err := svc.Submit(checkIn.ID, models.EvidencePayload{Message: "hi"}, models.ResponseMeta{})
	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.ElementsMatch(t, []string{"location", "safe_word"}, missing.Fields)
}

func TestSubmitAlreadyResolved(t *testing.T) {
	scheduled := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store, _, svc := newCheckInFixture(t, scheduled)

	schedule := dailySchedule()
	require.NoError(t, store.PutSchedule(schedule))
	checkIn := &models.CheckIn{ScheduleID: schedule.ID, UserID: 1, Status: models.CheckInStatusCompleted, ScheduledTime: scheduled}
	require.NoError(t, store.PutCheckIn(checkIn))

	_, err := svc.Submit(checkIn.ID, models.EvidencePayload{}, models.ResponseMeta{})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestSubmitUnknownCheckIn(t *testing.T) {
	_, _, svc := newCheckInFixture(t, time.Now())
	_, err := svc.Submit(999, models.EvidencePayload{}, models.ResponseMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}
