package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergencize-checkin-service/config"
	"emergencize-checkin-service/models"
)

type engineFixture struct {
	store    *memStore
	clock    *fakeClock
	notifier *fakeNotifier
	registry *TimerRegistry
	engine   *EngineService
}

func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()
	store := newMemStore()
	clock := newFakeClock(now)
	notifier := &fakeNotifier{}
	registry := NewTimerRegistry(clock)
	locks := NewKeyedMutex()
	bus := NewEventBus()
	idGen := &seqIDGen{}

	scheduleSvc := NewScheduleService(store, &fakeLimiter{})
	checkInSvc := NewCheckInService(store, store, NewVerificationService(DefaultScoringPolicy),
		&fakeGeo{}, &fakeSecrets{}, clock, locks)
	escalationSvc := NewEscalationService(store, store, store, store, notifier, registry,
		clock, bus, idGen, locks)

	cfg := &config.Config{SweepIntervalSeconds: 3600, CheckInRetention: 100}
	engine := NewEngineService(cfg, scheduleSvc, checkInSvc, escalationSvc, store, store,
		NewRecurrenceCalculator(), notifier, registry, clock, bus, idGen, nil)

	t.Cleanup(engine.StopMonitoring)
	return &engineFixture{store: store, clock: clock, notifier: notifier, registry: registry, engine: engine}
}

// engineSchedule 返回一个从当前时钟10:00（UTC）开始每天签到的计划
func engineSchedule() *models.CheckInSchedule {
	s := escalatingSchedule()
	s.ID = 0 // 由存储分配
	s.IsActive = true
	s.StartTime = "10:00"
	s.EndTime = "10:30"
	s.GracePeriodMinutes = 15
	s.MissedTimeoutMinutes = 30
	s.ReminderLeadTimes = models.IntList{10}
	return s
}

func TestStartMonitoringSchedulesPendingCheckIn(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))

	require.NoError(t, f.engine.StartMonitoring())
	assert.True(t, f.engine.IsMonitoring())

	pending, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), pending.ScheduledTime)

	// 超时定时器 + 一个提醒定时器
	assert.Equal(t, 2, f.registry.Count())
}

func TestStartMonitoringIdempotent(t *testing.T) {
	f := newEngineFixture(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	require.NoError(t, f.engine.StartMonitoring())
	require.NoError(t, f.engine.StartMonitoring())
	assert.True(t, f.engine.IsMonitoring())
}

func TestReminderFires(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	// 09:50 提醒触发
	f.clock.Advance(110 * time.Minute)
	calls := f.notifier.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.ActionPush, calls[0].Action)
	assert.Equal(t, uint(1), calls[0].Target.UserID)
	assert.Contains(t, calls[0].Message, "10分钟")
}

func TestReminderSuppressedInQuietHours(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	schedule.QuietHours = models.QuietHoursSpec{Enabled: true, Start: "09:00", End: "10:00"}
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	// 提醒时刻09:50落在免打扰时段内，只布防超时定时器
	assert.Equal(t, 1, f.registry.Count())
}

func TestSubmitCompletesAndSchedulesNext(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	pending, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)

	// 10:05 按时提交（宽限期内）
	f.clock.Advance(125 * time.Minute)
	result, err := f.engine.SubmitCheckIn(pending.ID, models.EvidencePayload{Message: "平安"},
		models.ResponseMeta{Channel: models.ChannelApp})
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusCompleted, result.Status)

	// 下一次签到已排班到次日
	next, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)
	assert.NotEqual(t, pending.ID, next.ID)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), next.ScheduledTime)

	// 旧签到的超时定时器推进到截止时间也不再触发升级
	f.clock.Advance(time.Hour)
	stored, err := f.store.GetCheckIn(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusCompleted, stored.Status)
	assert.False(t, stored.Escalated)
}

func TestDeadlineTriggersEscalationAndReschedules(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	pending, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)

	// 截止时间 = 10:00 + 30分钟超时 + 15分钟宽限 = 10:45
	f.clock.Advance(165 * time.Minute)

	stored, err := f.store.GetCheckIn(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusMissed, stored.Status)
	assert.True(t, stored.Escalated)

	event, err := f.store.FindActiveByCheckIn(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, event.CurrentLevel)

	// 超时后立即排班次日的签到
	next, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), next.ScheduledTime)
}

func TestLateSubmitResolvesEscalation(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	schedule.AllowLateCheckIn = true
	schedule.MaxLateMinutes = 120
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	pending, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)

	// 超时升级后……
	f.clock.Advance(165 * time.Minute)
	event, err := f.store.FindActiveByCheckIn(pending.ID)
	require.NoError(t, err)

	// ……迟到提交到达。missed属于已解决状态，提交被拒绝，但手动解除升级可用
	_, err = f.engine.SubmitCheckIn(pending.ID, models.EvidencePayload{}, models.ResponseMeta{})
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	resolved, err := f.engine.ResolveEscalation(event.ID, models.ResolutionManualCancel, 1, "本人报平安")
	require.NoError(t, err)
	assert.Equal(t, models.EscalationStatusCancelled, resolved.Status)
}

func TestSubmitRacesDeadlineTimer(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	pending, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)

	// 提交先落库，之后才推进到截止时间：升级触发必须是空操作
	f.clock.Advance(2 * time.Hour)
	_, err = f.engine.SubmitCheckIn(pending.ID, models.EvidencePayload{}, models.ResponseMeta{})
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	_, err = f.store.FindActiveByCheckIn(pending.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSafetySweepCatchesLostTimer(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))

	// 模拟重启后丢失定时器的pending签到：截止时间已过
	stale := &models.CheckIn{
		ScheduleID:    schedule.ID,
		UserID:        schedule.UserID,
		Status:        models.CheckInStatusPending,
		ScheduledTime: now.Add(-2 * time.Hour),
	}
	require.NoError(t, f.store.PutCheckIn(stale))

	f.engine.safetySweep()

	stored, err := f.store.GetCheckIn(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusMissed, stored.Status)

	_, err = f.store.FindActiveByCheckIn(stale.ID)
	assert.NoError(t, err)
}

func TestSafetySweepSkipsNotYetDue(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))

	// 计划时间已过但还在超时+宽限窗口内
	fresh := &models.CheckIn{
		ScheduleID:    schedule.ID,
		UserID:        schedule.UserID,
		Status:        models.CheckInStatusPending,
		ScheduledTime: now.Add(-10 * time.Minute),
	}
	require.NoError(t, f.store.PutCheckIn(fresh))

	f.engine.safetySweep()

	stored, err := f.store.GetCheckIn(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusPending, stored.Status)
}

func TestDeactivateRetiresPending(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	pending, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)

	_, err = f.engine.SetScheduleActive(schedule.ID, false)
	require.NoError(t, err)

	// pending被关闭且不挂接升级，定时器全部取消
	stored, err := f.store.GetCheckIn(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckInStatusMissed, stored.Status)
	assert.False(t, stored.Escalated)
	assert.Equal(t, 0, f.registry.Count())

	// 推进时钟不再有任何动作
	f.clock.Advance(6 * time.Hour)
	assert.Empty(t, f.notifier.calls())
}

func TestDeleteScheduleKeepsHistory(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	pending, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteSchedule(schedule.ID))

	_, err = f.store.GetSchedule(schedule.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// 签到历史保留
	_, err = f.store.GetCheckIn(pending.ID)
	assert.NoError(t, err)
}

func TestUpdateScheduleKeepsPendingCheckIn(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	schedule := engineSchedule()
	require.NoError(t, f.store.PutSchedule(schedule))
	require.NoError(t, f.engine.StartMonitoring())

	pending, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), pending.ScheduledTime)

	schedule.StartTime = "14:00"
	schedule.EndTime = "14:30"
	require.NoError(t, f.engine.UpdateSchedule(schedule))

	// 既有pending签到不回溯：时间和定时器原样保留
	kept, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, kept.ID)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), kept.ScheduledTime)
	assert.Equal(t, 2, f.registry.Count())

	// 10:05 提交后，下一次排班才采用新配置
	f.clock.Advance(125 * time.Minute)
	_, err = f.engine.SubmitCheckIn(pending.ID, models.EvidencePayload{Message: "平安"},
		models.ResponseMeta{Channel: models.ChannelApp})
	require.NoError(t, err)

	next, err := f.store.FindPendingBySchedule(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), next.ScheduledTime)
}

func TestGetUserStats(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)

	base := time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)
	put := func(dayOffset int, status models.CheckInStatus, latency time.Duration) {
		scheduled := base.AddDate(0, 0, dayOffset)
		c := &models.CheckIn{ScheduleID: 1, UserID: 7, Status: status, ScheduledTime: scheduled}
		if status == models.CheckInStatusCompleted || status == models.CheckInStatusLate {
			submitted := scheduled.Add(latency)
			c.SubmittedAt = &submitted
		}
		require.NoError(t, f.store.PutCheckIn(c))
	}

	put(0, models.CheckInStatusCompleted, 2*time.Minute)
	put(1, models.CheckInStatusLate, 40*time.Minute)
	put(2, models.CheckInStatusMissed, 0)
	put(3, models.CheckInStatusCompleted, 4*time.Minute)
	put(4, models.CheckInStatusCompleted, 6*time.Minute)
	put(5, models.CheckInStatusPending, 0)

	stats, err := f.engine.GetUserStats(7)
	require.NoError(t, err)

	assert.Equal(t, 6, stats.TotalCheckIns)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 1, stats.Late)
	assert.Equal(t, 1, stats.Missed)
	assert.Equal(t, 1, stats.Pending)
	// (3完成+1迟到)/5已解决
	assert.InDelta(t, 0.8, stats.CompletionRate, 0.001)
	// 最近两次（跳过pending）都是completed，再往前是missed
	assert.Equal(t, 2, stats.CurrentStreak)
	// 延迟样本: 120s, 2400s, 240s, 360s → 均值780s, 中位数300s
	assert.InDelta(t, 780, stats.AvgLatencySecs, 0.001)
	assert.InDelta(t, 300, stats.MedianLatency, 0.001)
}
