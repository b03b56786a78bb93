package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"emergencize-checkin-service/config"
	"emergencize-checkin-service/models"
	"emergencize-checkin-service/utils"
)

// InterfaceEscalationService defines the escalation state machine interface
type InterfaceEscalationService interface {
	// Trigger 将到期未提交的签到判定为missed并启动升级流程
	Trigger(checkInID uint) (*models.EscalationEvent, error)
	// AdvanceLevel 层级定时器回调，推进到目标层级
	AdvanceLevel(eventID uint, targetLevel int)
	Resolve(eventID uint, method models.ResolutionMethod, resolvedBy uint, notes string) (*models.EscalationEvent, error)
	// ResolveActiveForCheckIn 解除签到挂接的active升级事件，没有则静默返回
	ResolveActiveForCheckIn(checkInID uint, method models.ResolutionMethod, resolvedBy uint) error
	GetEscalation(id uint) (*models.EscalationEvent, error)
	ListEscalationsByUser(userID uint) ([]models.EscalationEvent, error)
	ListEscalationsBySchedule(scheduleID uint) ([]models.EscalationEvent, error)
}

// EscalationService 驱动升级事件状态机。
// 所有状态转换都持有实体锁并先重读持久化状态，定时器触发只是建议，
// 数据库里的状态才是事实。
type EscalationService struct {
	Schedules   InterfaceScheduleStore
	CheckIns    InterfaceCheckInStore
	Escalations InterfaceEscalationStore
	Contacts    InterfaceContactStore
	Notifier    InterfaceNotificationService
	Registry    *TimerRegistry
	Clock       InterfaceTimerService
	Bus         *EventBus
	IDGen       utils.IDGenerator
	Locks       *KeyedMutex
}

// NewEscalationService 创建升级控制器
func NewEscalationService(schedules InterfaceScheduleStore, checkIns InterfaceCheckInStore,
	escalations InterfaceEscalationStore, contacts InterfaceContactStore,
	notifier InterfaceNotificationService, registry *TimerRegistry,
	clock InterfaceTimerService, bus *EventBus, idGen utils.IDGenerator, locks *KeyedMutex) InterfaceEscalationService {
	return &EscalationService{
		Schedules:   schedules,
		CheckIns:    checkIns,
		Escalations: escalations,
		Contacts:    contacts,
		Notifier:    notifier,
		Registry:    registry,
		Clock:       clock,
		Bus:         bus,
		IDGen:       idGen,
		Locks:       locks,
	}
}

// Trigger 处理签到超时。
// 重读签到状态确认仍为pending（提交可能与定时器竞态），标记missed，
// 若计划开启自动报警则创建升级事件并立即执行第一层级。
func (s *EscalationService) Trigger(checkInID uint) (*models.EscalationEvent, error) {
	unlock := s.Locks.Lock(fmt.Sprintf("checkin:%d", checkInID))
	defer unlock()

	checkIn, err := s.CheckIns.GetCheckIn(checkInID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			config.Warning("升级触发时签到已不存在: checkin=%d", checkInID)
			return nil, nil
		}
		return nil, err
	}
	if checkIn.Status != models.CheckInStatusPending {
		// 定时器触发前签到已被提交或处理，静默放弃
		return nil, nil
	}

	schedule, err := s.Schedules.GetSchedule(checkIn.ScheduleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			config.Warning("升级触发时计划已删除: checkin=%d, schedule=%d", checkInID, checkIn.ScheduleID)
			return nil, nil
		}
		return nil, err
	}

	now := s.Clock.Now()
	checkIn.Status = models.CheckInStatusMissed
	checkIn.Escalated = schedule.AutoAlert
	checkIn.CompletedAt = &now
	if err := s.CheckIns.PutCheckIn(checkIn); err != nil {
		return nil, err
	}
	s.publish(EventCheckInMissed, checkIn.UserID, checkIn.ScheduleID, checkIn.ID, 0, nil)
	config.Warning("签到判定为missed: checkin=%d, user=%d, schedule=%d", checkIn.ID, checkIn.UserID, schedule.ID)

	if !schedule.AutoAlert {
		return nil, nil
	}

	// 一个签到最多挂接一个active升级事件
	if existing, err := s.Escalations.FindActiveByCheckIn(checkIn.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	event := &models.EscalationEvent{
		CheckInID:    checkIn.ID,
		ScheduleID:   schedule.ID,
		UserID:       checkIn.UserID,
		Status:       models.EscalationStatusActive,
		CurrentLevel: 1,
		TriggeredAt:  now,
		ActionLog:    models.ActionLogList{},
	}
	if err := s.Escalations.PutEscalation(event); err != nil {
		return nil, err
	}
	s.publish(EventEscalationTriggered, event.UserID, event.ScheduleID, event.CheckInID, event.ID, nil)

	s.executeLevel(event, schedule, 0)
	if err := s.Escalations.PutEscalation(event); err != nil {
		config.Error("保存升级动作日志失败: event=%d, err=%v", event.ID, err)
	}
	s.armNextLevel(event, schedule)
	return event, nil
}

// AdvanceLevel 层级推进定时器回调。
// 事件可能在定时器触发前已被解除或已推进过，先校验再动作。
func (s *EscalationService) AdvanceLevel(eventID uint, targetLevel int) {
	unlock := s.Locks.Lock(fmt.Sprintf("escalation:%d", eventID))
	defer unlock()

	event, err := s.Escalations.GetEscalation(eventID)
	if err != nil {
		config.Warning("层级推进时事件不存在: event=%d, err=%v", eventID, err)
		return
	}
	if !event.Active() {
		return
	}
	if event.CurrentLevel >= targetLevel {
		// 过期的定时器回调
		return
	}

	schedule, err := s.Schedules.GetSchedule(event.ScheduleID)
	if err != nil {
		config.Warning("层级推进时计划已删除: event=%d, schedule=%d", eventID, event.ScheduleID)
		return
	}
	if targetLevel > len(schedule.EscalationLevels) {
		return
	}

	event.CurrentLevel = targetLevel
	s.publish(EventEscalationLevelAdvanced, event.UserID, event.ScheduleID, event.CheckInID, event.ID,
		map[string]interface{}{"level": targetLevel})
	config.Warning("升级推进到层级%d: event=%d, user=%d", targetLevel, event.ID, event.UserID)

	s.executeLevel(event, schedule, targetLevel-1)
	if err := s.Escalations.PutEscalation(event); err != nil {
		config.Error("保存升级事件失败: event=%d, err=%v", event.ID, err)
	}
	s.armNextLevel(event, schedule)
}

// Resolve 解除升级事件并取消其层级定时器
func (s *EscalationService) Resolve(eventID uint, method models.ResolutionMethod, resolvedBy uint, notes string) (*models.EscalationEvent, error) {
	unlock := s.Locks.Lock(fmt.Sprintf("escalation:%d", eventID))
	defer unlock()

	event, err := s.Escalations.GetEscalation(eventID)
	if err != nil {
		return nil, err
	}
	if !event.Active() {
		return nil, ErrAlreadyResolved
	}

	s.Registry.CancelEntity(TimerLevelAdvance, event.ID)

	status := models.EscalationStatusResolved
	if method == models.ResolutionManualCancel || method == models.ResolutionFalseAlarm {
		status = models.EscalationStatusCancelled
	}
	event.Status = status
	event.Resolution = &models.EscalationResolution{
		Method:     method,
		ResolvedBy: resolvedBy,
		Notes:      notes,
		ResolvedAt: s.Clock.Now(),
	}
	if err := s.Escalations.PutEscalation(event); err != nil {
		return nil, err
	}

	s.publish(EventEscalationResolved, event.UserID, event.ScheduleID, event.CheckInID, event.ID,
		map[string]interface{}{"method": string(method)})
	config.Info("升级事件已解除: event=%d, method=%s", event.ID, method)
	return event, nil
}

// ResolveActiveForCheckIn 迟到提交到达时解除挂接的升级事件
func (s *EscalationService) ResolveActiveForCheckIn(checkInID uint, method models.ResolutionMethod, resolvedBy uint) error {
	event, err := s.Escalations.FindActiveByCheckIn(checkInID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	_, err = s.Resolve(event.ID, method, resolvedBy, "")
	if errors.Is(err, ErrAlreadyResolved) {
		return nil
	}
	return err
}

// GetEscalation 根据ID获取升级事件
func (s *EscalationService) GetEscalation(id uint) (*models.EscalationEvent, error) {
	return s.Escalations.GetEscalation(id)
}

// ListEscalationsByUser 获取用户的升级事件列表
func (s *EscalationService) ListEscalationsByUser(userID uint) ([]models.EscalationEvent, error) {
	return s.Escalations.ListEscalationsByUser(userID)
}

// ListEscalationsBySchedule 获取计划的升级事件列表
func (s *EscalationService) ListEscalationsBySchedule(scheduleID uint) ([]models.EscalationEvent, error) {
	return s.Escalations.ListEscalationsBySchedule(scheduleID)
}

// armNextLevel 为下一层级布防推进定时器
func (s *EscalationService) armNextLevel(event *models.EscalationEvent, schedule *models.CheckInSchedule) {
	if !event.Active() {
		return
	}
	next := event.CurrentLevel + 1
	if next > len(schedule.EscalationLevels) {
		return
	}
	delay := time.Duration(schedule.EscalationLevels[next-1].DelayMinutes) * time.Minute
	eventID := event.ID
	s.Registry.Arm(TimerKey{Kind: TimerLevelAdvance, EntityID: eventID, Seq: next}, delay, func() {
		s.AdvanceLevel(eventID, next)
	})
}

// executeLevel 执行指定层级的全部动作。
// 单个动作失败只记录，绝不阻塞同层级的其他动作。
func (s *EscalationService) executeLevel(event *models.EscalationEvent, schedule *models.CheckInSchedule, idx int) {
	if idx < 0 || idx >= len(schedule.EscalationLevels) {
		return
	}
	level := schedule.EscalationLevels[idx]
	contacts := s.resolveContacts(level, schedule)
	now := s.Clock.Now()

	// 按优先级从高到低执行
	actions := make([]models.EscalationAction, 0, len(level.Actions))
	for _, a := range level.Actions {
		if a.Enabled {
			actions = append(actions, a)
		}
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Priority > actions[j].Priority })

	succeeded := 0
	for _, action := range actions {
		message := action.Message
		if message == "" {
			message = fmt.Sprintf("安全签到提醒：用户未按时完成计划 %q 的签到，当前升级层级 %d。", schedule.Name, level.Level)
		}

		for _, target := range s.targetsFor(action.Type, event.UserID, contacts) {
			result := s.Notifier.Send(action.Type, target, message)
			entry := models.ActionLogEntry{
				Action:    action.Type,
				Level:     level.Level,
				Timestamp: now,
				Success:   result.Success,
				Response:  result.Response,
				Error:     result.Error,
			}
			event.ActionLog = append(event.ActionLog, entry)
			if result.Success {
				succeeded++
			} else {
				config.Error("升级动作执行失败: event=%d, action=%s, target=%s, err=%s",
					event.ID, action.Type, target.Name, result.Error)
			}
			s.publish(EventActionDispatched, event.UserID, event.ScheduleID, event.CheckInID, event.ID,
				map[string]interface{}{"action": string(action.Type), "level": level.Level, "success": result.Success})
		}
	}
	if succeeded == 0 && len(actions) > 0 {
		config.Error("升级层级所有动作均失败: event=%d, level=%d", event.ID, level.Level)
	}
}

// resolveContacts 解析层级的通知联系人。
// 层级未指定联系人时回退到计划级的紧急联系人列表，缺失的ID跳过并记录。
func (s *EscalationService) resolveContacts(level models.EscalationLevel, schedule *models.CheckInSchedule) []models.EmergencyContact {
	ids := level.ContactIDs
	if len(ids) == 0 {
		ids = schedule.EmergencyContactIDs
	}
	contacts := make([]models.EmergencyContact, 0, len(ids))
	for _, id := range ids {
		contact, err := s.Contacts.GetContact(id)
		if err != nil {
			config.Warning("联系人不存在，跳过: contact=%d, schedule=%d", id, schedule.ID)
			continue
		}
		contacts = append(contacts, *contact)
	}
	// 优先级高的先收到通知
	sort.SliceStable(contacts, func(i, j int) bool { return contacts[i].Priority > contacts[j].Priority })
	return contacts
}

// targetsFor 按动作类型展开投递目标。
// push提醒发给被监护用户本人，位置共享广播到用户的位置频道，
// 紧急服务通道不依赖联系人列表，其余按联系人的通知偏好过滤。
func (s *EscalationService) targetsFor(action models.ActionType, userID uint, contacts []models.EmergencyContact) []NotifyTarget {
	switch action {
	case models.ActionPush, models.ActionLocationShare:
		return []NotifyTarget{{UserID: userID}}
	case models.ActionEmergencyServices:
		return []NotifyTarget{{UserID: userID, Name: "emergency_services"}}
	}

	var targets []NotifyTarget
	for _, c := range contacts {
		switch action {
		case models.ActionSMS:
			if !c.NotifyBySMS {
				continue
			}
		case models.ActionCall:
			if !c.NotifyByCall {
				continue
			}
		case models.ActionEmail:
			if !c.NotifyByEmail {
				continue
			}
		}
		targets = append(targets, NotifyTarget{
			ContactID: c.ID,
			Name:      c.Name,
			Phone:     c.PhoneNumber,
			Email:     c.Email,
		})
	}
	return targets
}

func (s *EscalationService) publish(kind EventKind, userID, scheduleID, checkInID, escalationID uint, payload interface{}) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(EngineEvent{
		ID:           s.IDGen.NewID(),
		Kind:         kind,
		UserID:       userID,
		ScheduleID:   scheduleID,
		CheckInID:    checkInID,
		EscalationID: escalationID,
		Payload:      payload,
		Timestamp:    s.Clock.Now(),
	})
}
