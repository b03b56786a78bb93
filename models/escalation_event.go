package models

import (
	"database/sql/driver"
	"time"
)

// EscalationStatus 升级事件状态
type EscalationStatus string

const (
	EscalationStatusActive    EscalationStatus = "active"
	EscalationStatusResolved  EscalationStatus = "resolved"
	EscalationStatusCancelled EscalationStatus = "cancelled"
)

// ResolutionMethod 升级事件的解除方式
type ResolutionMethod string

const (
	ResolutionCheckInReceived    ResolutionMethod = "check_in_received"
	ResolutionManualCancel       ResolutionMethod = "manual_cancel"
	ResolutionFalseAlarm         ResolutionMethod = "false_alarm"
	ResolutionEmergencyConfirmed ResolutionMethod = "emergency_confirmed"
)

// EscalationResolution 解除信息
type EscalationResolution struct {
	Method     ResolutionMethod `json:"method"`
	ResolvedBy uint             `json:"resolved_by,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	ResolvedAt time.Time        `json:"resolved_at"`
}

func (r EscalationResolution) Value() (driver.Value, error) { return jsonValue(r) }
func (r *EscalationResolution) Scan(src interface{}) error  { return jsonScan(src, r) }

// ActionLogEntry 每次升级动作的执行记录
type ActionLogEntry struct {
	Action    ActionType `json:"action"`
	Level     int        `json:"level"`
	Timestamp time.Time  `json:"timestamp"`
	Success   bool       `json:"success"`
	Response  string     `json:"response,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ActionLogList 以JSON列存储的动作日志
type ActionLogList []ActionLogEntry

func (l ActionLogList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *ActionLogList) Scan(src interface{}) error  { return jsonScan(src, l) }

// EscalationEvent 表示一次升级处置过程，唯一对应一个错过的签到
type EscalationEvent struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	CheckInID  uint             `gorm:"index;not null" json:"check_in_id"`
	ScheduleID uint             `gorm:"index;not null" json:"schedule_id"`
	UserID     uint             `gorm:"index;not null" json:"user_id"`
	Status     EscalationStatus `gorm:"type:varchar(20);index;default:'active'" json:"status"`

	CurrentLevel int       `gorm:"default:1" json:"current_level"`
	TriggeredAt  time.Time `json:"triggered_at"`

	Resolution *EscalationResolution `gorm:"type:json" json:"resolution,omitempty"`
	ActionLog  ActionLogList         `gorm:"type:json" json:"action_log"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (EscalationEvent) TableName() string {
	return "escalation_events"
}

// Active 事件是否仍在处置中
func (e *EscalationEvent) Active() bool {
	return e.Status == EscalationStatusActive
}
