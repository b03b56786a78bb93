package services

import (
	"fmt"

	"gorm.io/gorm"

	"emergencize-checkin-service/config"
	"emergencize-checkin-service/models"
)

// AuditService 将关键引擎事件落入系统日志表
type AuditService struct {
	DB    *gorm.DB
	Clock InterfaceTimerService
}

// NewAuditService 创建审计服务
func NewAuditService(db *gorm.DB, clock InterfaceTimerService) *AuditService {
	return &AuditService{DB: db, Clock: clock}
}

// Subscriber 返回事件总线订阅者，只记录需要留痕的事件
func (s *AuditService) Subscriber() EventSubscriber {
	return func(event EngineEvent) {
		switch event.Kind {
		case EventCheckInMissed:
			s.record(string(event.Kind), fmt.Sprintf("check_in:%d", event.CheckInID))
		case EventEscalationTriggered, EventEscalationResolved:
			s.record(string(event.Kind), fmt.Sprintf("escalation:%d", event.EscalationID))
		case EventScheduleDeleted:
			s.record(string(event.Kind), fmt.Sprintf("schedule:%d", event.ScheduleID))
		}
	}
}

// record 写入一条审计日志，失败只记录不传播
func (s *AuditService) record(action, target string) {
	entry := models.SystemLog{
		Action:    action,
		Target:    target,
		Timestamp: s.Clock.Now(),
	}
	if err := s.DB.Create(&entry).Error; err != nil {
		config.Error("写入审计日志失败: action=%s, target=%s, err=%v", action, target, err)
	}
}
