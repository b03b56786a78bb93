package services

import (
	"sync"
	"time"

	"emergencize-checkin-service/config"
)

// EventKind 引擎生命周期事件类型
type EventKind string

const (
	EventScheduleCreated EventKind = "schedule_created"
	EventScheduleUpdated EventKind = "schedule_updated"
	EventScheduleDeleted EventKind = "schedule_deleted"

	EventCheckInScheduled EventKind = "checkin_scheduled"
	EventCheckInCompleted EventKind = "checkin_completed"
	EventCheckInLate      EventKind = "checkin_late"
	EventCheckInMissed    EventKind = "checkin_missed"

	EventReminderSent EventKind = "reminder_sent"

	EventEscalationTriggered     EventKind = "escalation_triggered"
	EventEscalationLevelAdvanced EventKind = "escalation_level_advanced"
	EventEscalationResolved      EventKind = "escalation_resolved"
	EventActionDispatched        EventKind = "action_dispatched"
)

// EngineEvent 引擎对外发布的生命周期事件
type EngineEvent struct {
	ID           string      `json:"id"`
	Kind         EventKind   `json:"kind"`
	UserID       uint        `json:"user_id,omitempty"`
	ScheduleID   uint        `json:"schedule_id,omitempty"`
	CheckInID    uint        `json:"check_in_id,omitempty"`
	EscalationID uint        `json:"escalation_id,omitempty"`
	Payload      interface{} `json:"payload,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// EventSubscriber 事件订阅者回调
type EventSubscriber func(event EngineEvent)

// EventBus 观察者注册表。
// 发布是fire-and-forget：每个订阅者在独立goroutine中被通知，
// 订阅者panic会被捕获并记录，绝不影响引擎本身。
type EventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus 创建事件总线
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe 注册一个订阅者
func (b *EventBus) Subscribe(subscriber EventSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber)
}

// Publish 向所有订阅者异步投递事件
func (b *EventBus) Publish(event EngineEvent) {
	b.mu.RLock()
	subs := make([]EventSubscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		go func(fn EventSubscriber) {
			defer func() {
				if r := recover(); r != nil {
					config.Error("事件订阅者panic: kind=%s, error=%v", event.Kind, r)
				}
			}()
			fn(event)
		}(sub)
	}
}
