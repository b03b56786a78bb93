package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"emergencize-checkin-service/config"
	"emergencize-checkin-service/models"
	"emergencize-checkin-service/utils"
)

// UserStats 用户签到统计
type UserStats struct {
	UserID          uint    `json:"user_id"`
	TotalCheckIns   int     `json:"total_check_ins"`
	Completed       int     `json:"completed"`
	Late            int     `json:"late"`
	Missed          int     `json:"missed"`
	Pending         int     `json:"pending"`
	CompletionRate  float64 `json:"completion_rate"` // (completed+late)/已解决总数
	CurrentStreak   int     `json:"current_streak"`  // 从最近一次开始连续按时签到的次数
	AvgLatencySecs  float64 `json:"avg_latency_secs"`
	MedianLatency   float64 `json:"median_latency_secs"`
	EscalationCount int     `json:"escalation_count"`
}

// InterfaceEngineService defines the orchestration interface
type InterfaceEngineService interface {
	CreateSchedule(schedule *models.CheckInSchedule) error
	UpdateSchedule(schedule *models.CheckInSchedule) error
	DeleteSchedule(id uint) error
	SetScheduleActive(id uint, active bool) (*models.CheckInSchedule, error)
	SubmitCheckIn(checkInID uint, evidence models.EvidencePayload, meta models.ResponseMeta) (*models.CheckIn, error)
	ResolveEscalation(eventID uint, method models.ResolutionMethod, resolvedBy uint, notes string) (*models.EscalationEvent, error)
	StartMonitoring() error
	StopMonitoring()
	IsMonitoring() bool
	GetUserStats(userID uint) (*UserStats, error)
}

// EngineService 是调度引擎的编排层。
// 计划、签到、升级三个子服务各管自己的状态机，
// 跨实体的联动（定时器布防与取消、升级解除、下一次排班）全部收口在这里。
type EngineService struct {
	Config      *config.Config
	Schedules   InterfaceScheduleService
	CheckIns    InterfaceCheckInService
	Escalations InterfaceEscalationService
	Stores      struct {
		Schedule InterfaceScheduleStore
		CheckIn  InterfaceCheckInStore
	}
	Recurrence *RecurrenceCalculator
	Notifier   InterfaceNotificationService
	Registry   *TimerRegistry
	Clock      InterfaceTimerService
	Bus        *EventBus
	IDGen      utils.IDGenerator
	Cache      *RedisService

	mu        sync.Mutex
	running   bool
	stopSweep chan struct{}
}

// NewEngineService 创建引擎编排服务
func NewEngineService(cfg *config.Config, schedules InterfaceScheduleService, checkIns InterfaceCheckInService,
	escalations InterfaceEscalationService, scheduleStore InterfaceScheduleStore, checkInStore InterfaceCheckInStore,
	recurrence *RecurrenceCalculator, notifier InterfaceNotificationService, registry *TimerRegistry,
	clock InterfaceTimerService, bus *EventBus, idGen utils.IDGenerator, cache *RedisService) *EngineService {
	e := &EngineService{
		Config:      cfg,
		Schedules:   schedules,
		CheckIns:    checkIns,
		Escalations: escalations,
		Recurrence:  recurrence,
		Notifier:    notifier,
		Registry:    registry,
		Clock:       clock,
		Bus:         bus,
		IDGen:       idGen,
		Cache:       cache,
	}
	e.Stores.Schedule = scheduleStore
	e.Stores.CheckIn = checkInStore
	return e
}

// CreateSchedule 创建计划并立即排班第一次签到
func (e *EngineService) CreateSchedule(schedule *models.CheckInSchedule) error {
	if err := e.Schedules.CreateSchedule(schedule); err != nil {
		return err
	}
	e.publish(EventScheduleCreated, schedule.UserID, schedule.ID, 0, 0, nil)
	config.Info("计划已创建: schedule=%d, user=%d, freq=%s", schedule.ID, schedule.UserID, schedule.Frequency)

	if e.IsMonitoring() {
		e.activateSchedule(schedule)
	}
	return nil
}

// UpdateSchedule 更新计划配置。
// 已布防的pending签到及其定时器不受影响，新配置从下一次排班开始生效。
func (e *EngineService) UpdateSchedule(schedule *models.CheckInSchedule) error {
	if err := e.Schedules.UpdateSchedule(schedule); err != nil {
		return err
	}
	e.publish(EventScheduleUpdated, schedule.UserID, schedule.ID, 0, 0, nil)

	if e.IsMonitoring() {
		if _, err := e.Stores.CheckIn.FindPendingBySchedule(schedule.ID); err != nil {
			e.activateSchedule(schedule)
		}
	}
	return nil
}

// DeleteSchedule 删除计划。
// 取消其pending签到的全部定时器并解除挂接的升级事件，历史保留。
func (e *EngineService) DeleteSchedule(id uint) error {
	schedule, err := e.Schedules.GetSchedule(id)
	if err != nil {
		return err
	}
	e.retireSchedule(schedule)
	if err := e.Schedules.DeleteSchedule(id); err != nil {
		return err
	}
	e.publish(EventScheduleDeleted, schedule.UserID, schedule.ID, 0, 0, nil)
	config.Info("计划已删除: schedule=%d, user=%d", id, schedule.UserID)
	return nil
}

// SetScheduleActive 启停计划。停用时作废pending签到，启用时重新排班。
func (e *EngineService) SetScheduleActive(id uint, active bool) (*models.CheckInSchedule, error) {
	schedule, err := e.Schedules.SetActive(id, active)
	if err != nil {
		return nil, err
	}
	if e.IsMonitoring() {
		if active {
			e.activateSchedule(schedule)
		} else {
			e.retireSchedule(schedule)
		}
	}
	e.publish(EventScheduleUpdated, schedule.UserID, schedule.ID, 0, 0,
		map[string]interface{}{"is_active": active})
	return schedule, nil
}

// SubmitCheckIn 处理一次签到提交。
// 核心状态转换完成后，取消该签到的所有定时器、解除挂接的升级事件，
// 并排班下一次签到。后两步失败只记录，不回滚已落库的提交。
func (e *EngineService) SubmitCheckIn(checkInID uint, evidence models.EvidencePayload, meta models.ResponseMeta) (*models.CheckIn, error) {
	checkIn, err := e.CheckIns.Submit(checkInID, evidence, meta)
	if err != nil {
		return nil, err
	}

	e.Registry.CancelEntity(TimerEscalationDeadline, checkIn.ID)
	e.Registry.CancelEntity(TimerReminder, checkIn.ID)

	if err := e.Escalations.ResolveActiveForCheckIn(checkIn.ID, models.ResolutionCheckInReceived, checkIn.UserID); err != nil {
		config.Error("解除升级事件失败: checkin=%d, err=%v", checkIn.ID, err)
	}

	kind := EventCheckInCompleted
	if checkIn.Status == models.CheckInStatusLate {
		kind = EventCheckInLate
	}
	e.publish(kind, checkIn.UserID, checkIn.ScheduleID, checkIn.ID, 0,
		map[string]interface{}{"score": scoreOf(checkIn)})
	config.Info("签到提交: checkin=%d, user=%d, status=%s", checkIn.ID, checkIn.UserID, checkIn.Status)

	// 失效统计缓存
	if e.Cache != nil {
		_ = e.Cache.Delete(fmt.Sprintf("stats:user:%d", checkIn.UserID))
	}

	if e.IsMonitoring() {
		if schedule, err := e.Schedules.GetSchedule(checkIn.ScheduleID); err == nil && schedule.IsActive {
			e.activateSchedule(schedule)
		}
	}
	return checkIn, nil
}

// ResolveEscalation 手动解除升级事件
func (e *EngineService) ResolveEscalation(eventID uint, method models.ResolutionMethod, resolvedBy uint, notes string) (*models.EscalationEvent, error) {
	return e.Escalations.Resolve(eventID, method, resolvedBy, notes)
}

// StartMonitoring 启动引擎：为所有激活计划排班，并启动安全巡检。
// 巡检兜底处理定时器丢失的情况（进程重启后内存定时器全部丢失）。
func (e *EngineService) StartMonitoring() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.stopSweep = make(chan struct{})
	stop := e.stopSweep
	e.mu.Unlock()

	schedules, err := e.Schedules.ListActiveSchedules()
	if err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return err
	}
	for i := range schedules {
		e.activateSchedule(&schedules[i])
	}
	config.Info("引擎已启动: 激活计划数=%d, 定时器数=%d", len(schedules), e.Registry.Count())

	interval := time.Duration(e.Config.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	go e.sweepLoop(stop, interval)
	return nil
}

// StopMonitoring 停止引擎：结束巡检并取消所有内存定时器
func (e *EngineService) StopMonitoring() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopSweep)
	e.mu.Unlock()

	e.Registry.CancelAll()
	config.Info("引擎已停止")
}

// IsMonitoring 引擎是否在运行
func (e *EngineService) IsMonitoring() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// sweepLoop 周期巡检：兜底触发超时签到并裁剪历史
func (e *EngineService) sweepLoop(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.safetySweep()
		}
	}
}

// safetySweep 找出截止时间已过却仍为pending的签到，补触发升级。
// Trigger自带check-before-act校验，对已处理的签到是无害的空操作。
func (e *EngineService) safetySweep() {
	now := e.Clock.Now()
	due, err := e.Stores.CheckIn.ListPendingDue(now)
	if err != nil {
		config.Error("巡检查询失败: err=%v", err)
		return
	}
	for i := range due {
		checkIn := &due[i]
		schedule, err := e.Stores.Schedule.GetSchedule(checkIn.ScheduleID)
		if err != nil {
			continue
		}
		if now.Before(checkIn.Deadline(schedule)) {
			continue
		}
		config.Warning("巡检发现超时未处理的签到: checkin=%d, scheduled=%s",
			checkIn.ID, checkIn.ScheduledTime.Format(time.RFC3339))
		if _, err := e.Escalations.Trigger(checkIn.ID); err != nil {
			config.Error("巡检触发升级失败: checkin=%d, err=%v", checkIn.ID, err)
			continue
		}
		// 升级后立即排班下一次
		if schedule.IsActive {
			e.activateSchedule(schedule)
		}
		if e.Config.CheckInRetention > 0 {
			if err := e.Stores.CheckIn.PruneHistory(schedule.ID, e.Config.CheckInRetention); err != nil {
				config.Warning("历史裁剪失败: schedule=%d, err=%v", schedule.ID, err)
			}
		}
	}
}

// activateSchedule 保证计划有pending签到并布防其定时器
func (e *EngineService) activateSchedule(schedule *models.CheckInSchedule) {
	if !schedule.IsActive {
		return
	}
	now := e.Clock.Now()
	next, ok := e.Recurrence.NextCheckInTime(schedule, now)
	if !ok {
		config.Warning("计划无法计算下一次签到时间: schedule=%d", schedule.ID)
		return
	}

	checkIn, created, err := e.CheckIns.EnsurePending(schedule, next)
	if err != nil {
		config.Error("创建pending签到失败: schedule=%d, err=%v", schedule.ID, err)
		return
	}
	if created {
		e.publish(EventCheckInScheduled, schedule.UserID, schedule.ID, checkIn.ID, 0,
			map[string]interface{}{"scheduled_time": checkIn.ScheduledTime})
		config.Info("签到已排班: checkin=%d, schedule=%d, at=%s",
			checkIn.ID, schedule.ID, checkIn.ScheduledTime.Format(time.RFC3339))
	}
	e.armCheckInTimers(checkIn, schedule)
}

// armCheckInTimers 布防签到的超时定时器与提醒定时器
func (e *EngineService) armCheckInTimers(checkIn *models.CheckIn, schedule *models.CheckInSchedule) {
	now := e.Clock.Now()
	checkInID := checkIn.ID

	delay := checkIn.Deadline(schedule).Sub(now)
	if delay < 0 {
		delay = 0
	}
	e.Registry.Arm(TimerKey{Kind: TimerEscalationDeadline, EntityID: checkInID}, delay, func() {
		e.onDeadline(checkInID)
	})

	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		loc = time.UTC
	}
	for _, lead := range schedule.ReminderLeadTimes {
		fireAt := checkIn.ScheduledTime.Add(-time.Duration(lead) * time.Minute)
		if !fireAt.After(now) {
			continue
		}
		// 免打扰时段内不发提醒
		if InQuietHours(schedule.QuietHours, fireAt, loc) {
			continue
		}
		leadMinutes := lead
		e.Registry.Arm(TimerKey{Kind: TimerReminder, EntityID: checkInID, Seq: lead}, fireAt.Sub(now), func() {
			e.sendReminder(checkInID, leadMinutes)
		})
	}
}

// onDeadline 超时定时器回调：触发升级并排班下一次
func (e *EngineService) onDeadline(checkInID uint) {
	checkIn, err := e.Stores.CheckIn.GetCheckIn(checkInID)
	if err != nil {
		return
	}
	e.Registry.CancelEntity(TimerReminder, checkInID)

	if _, err := e.Escalations.Trigger(checkInID); err != nil {
		config.Error("触发升级失败: checkin=%d, err=%v", checkInID, err)
		return
	}
	if e.Cache != nil {
		_ = e.Cache.Delete(fmt.Sprintf("stats:user:%d", checkIn.UserID))
	}
	if schedule, err := e.Stores.Schedule.GetSchedule(checkIn.ScheduleID); err == nil && schedule.IsActive {
		e.activateSchedule(schedule)
	}
}

// sendReminder 提醒定时器回调。签到已被提交时静默放弃。
func (e *EngineService) sendReminder(checkInID uint, leadMinutes int) {
	checkIn, err := e.Stores.CheckIn.GetCheckIn(checkInID)
	if err != nil || checkIn.Status != models.CheckInStatusPending {
		return
	}
	message := fmt.Sprintf("温馨提醒：您有一次安全签到将在%d分钟后到期，请及时完成。", leadMinutes)
	result := e.Notifier.Send(models.ActionPush, NotifyTarget{UserID: checkIn.UserID}, message)
	if !result.Success {
		config.Warning("提醒发送失败: checkin=%d, err=%s", checkInID, result.Error)
		return
	}
	e.publish(EventReminderSent, checkIn.UserID, checkIn.ScheduleID, checkIn.ID, 0,
		map[string]interface{}{"lead_minutes": leadMinutes})
}

// retireSchedule 作废计划的pending签到：取消定时器并解除升级事件
func (e *EngineService) retireSchedule(schedule *models.CheckInSchedule) {
	pending, err := e.Stores.CheckIn.FindPendingBySchedule(schedule.ID)
	if err != nil {
		return
	}
	e.Registry.CancelEntity(TimerEscalationDeadline, pending.ID)
	e.Registry.CancelEntity(TimerReminder, pending.ID)
	if err := e.Escalations.ResolveActiveForCheckIn(pending.ID, models.ResolutionManualCancel, 0); err != nil {
		config.Warning("停用计划时解除升级失败: checkin=%d, err=%v", pending.ID, err)
	}
	// 未到期的占位签到直接判定为missed并关闭，不再挂接升级
	now := e.Clock.Now()
	pending.Status = models.CheckInStatusMissed
	pending.Escalated = false
	pending.CompletedAt = &now
	if err := e.Stores.CheckIn.PutCheckIn(pending); err != nil {
		config.Error("关闭pending签到失败: checkin=%d, err=%v", pending.ID, err)
	}
}

// GetUserStats 计算用户签到统计，带缓存
func (e *EngineService) GetUserStats(userID uint) (*UserStats, error) {
	if e.Cache != nil {
		var cached UserStats
		if err := e.Cache.GetUserStats(userID, &cached); err == nil {
			return &cached, nil
		}
	}

	checkIns, err := e.Stores.CheckIn.ListAllCheckInsByUser(userID)
	if err != nil {
		return nil, err
	}

	stats := &UserStats{UserID: userID}
	var latencies []float64
	for _, c := range checkIns {
		stats.TotalCheckIns++
		switch c.Status {
		case models.CheckInStatusCompleted:
			stats.Completed++
		case models.CheckInStatusLate:
			stats.Late++
		case models.CheckInStatusMissed:
			stats.Missed++
		case models.CheckInStatusPending:
			stats.Pending++
		}
		if c.SubmittedAt != nil && c.Status.Resolved() && c.Status != models.CheckInStatusMissed {
			latency := c.SubmittedAt.Sub(c.ScheduledTime).Seconds()
			if latency < 0 {
				latency = 0
			}
			latencies = append(latencies, latency)
		}
	}

	resolved := stats.Completed + stats.Late + stats.Missed
	if resolved > 0 {
		stats.CompletionRate = float64(stats.Completed+stats.Late) / float64(resolved)
	}

	// 连续按时签到次数：按计划时间从新到旧数completed
	sort.Slice(checkIns, func(i, j int) bool {
		return checkIns[i].ScheduledTime.After(checkIns[j].ScheduledTime)
	})
	for _, c := range checkIns {
		if c.Status == models.CheckInStatusPending {
			continue
		}
		if c.Status != models.CheckInStatusCompleted {
			break
		}
		stats.CurrentStreak++
	}

	if len(latencies) > 0 {
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		stats.AvgLatencySecs = sum / float64(len(latencies))
		sort.Float64s(latencies)
		mid := len(latencies) / 2
		if len(latencies)%2 == 1 {
			stats.MedianLatency = latencies[mid]
		} else {
			stats.MedianLatency = (latencies[mid-1] + latencies[mid]) / 2
		}
	}

	if events, err := e.Escalations.ListEscalationsByUser(userID); err == nil {
		stats.EscalationCount = len(events)
	}

	if e.Cache != nil {
		_ = e.Cache.CacheUserStats(userID, stats, 5*time.Minute)
	}
	return stats, nil
}

func (e *EngineService) publish(kind EventKind, userID, scheduleID, checkInID, escalationID uint, payload interface{}) {
	if e.Bus == nil {
		return
	}
	e.Bus.Publish(EngineEvent{
		ID:           e.IDGen.NewID(),
		Kind:         kind,
		UserID:       userID,
		ScheduleID:   scheduleID,
		CheckInID:    checkInID,
		EscalationID: escalationID,
		Payload:      payload,
		Timestamp:    e.Clock.Now(),
	})
}

func scoreOf(checkIn *models.CheckIn) float64 {
	if checkIn.Verification == nil {
		return 0
	}
	return checkIn.Verification.Score
}
