package models

import (
	"database/sql/driver"
	"time"
)

// CheckInStatus represents the status of a check-in
type CheckInStatus string

const (
	CheckInStatusPending   CheckInStatus = "pending"
	CheckInStatusCompleted CheckInStatus = "completed"
	CheckInStatusLate      CheckInStatus = "late"
	CheckInStatusMissed    CheckInStatus = "missed"
)

// Resolved 是否已离开pending状态
func (s CheckInStatus) Resolved() bool {
	return s != CheckInStatusPending
}

// GeoPoint 经纬度坐标
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// EvidencePayload 用户提交的签到凭据
type EvidencePayload struct {
	Location *GeoPoint          `json:"location,omitempty"`
	PhotoRef string             `json:"photo_ref,omitempty"` // 照片存储引用
	Message  string             `json:"message,omitempty"`
	Vitals   map[string]float64 `json:"vitals,omitempty"`
	SafeWord string             `json:"safe_word,omitempty"`
	Extra    map[string]string  `json:"extra,omitempty"`
}

func (e EvidencePayload) Value() (driver.Value, error) { return jsonValue(e) }
func (e *EvidencePayload) Scan(src interface{}) error  { return jsonScan(src, e) }

// 签到提交渠道
const (
	ChannelApp      = "app"
	ChannelWearable = "wearable"
	ChannelSMS      = "sms"
	ChannelVoice    = "voice"
	ChannelManual   = "manual"
)

// ResponseMeta 签到提交的元数据
type ResponseMeta struct {
	Channel    string `json:"channel,omitempty"` // app/wearable/sms/voice/manual
	DeviceInfo string `json:"device_info,omitempty"`
	Origin     string `json:"origin,omitempty"` // 网络来源
}

func (m ResponseMeta) Value() (driver.Value, error) { return jsonValue(m) }
func (m *ResponseMeta) Scan(src interface{}) error  { return jsonScan(src, m) }

// VerificationResult 校验打分结果
type VerificationResult struct {
	Verified  bool     `json:"verified"`
	Method    string   `json:"method"`
	Score     float64  `json:"score"` // [0,1]
	Anomalies []string `json:"anomalies,omitempty"`
}

func (v VerificationResult) Value() (driver.Value, error) { return jsonValue(v) }
func (v *VerificationResult) Scan(src interface{}) error  { return jsonScan(src, v) }

// CheckIn 表示一次具体的签到实例
type CheckIn struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	ScheduleID uint          `gorm:"index;not null" json:"schedule_id"`
	UserID     uint          `gorm:"index;not null" json:"user_id"`
	Status     CheckInStatus `gorm:"type:varchar(20);index;default:'pending'" json:"status"`

	ScheduledTime time.Time  `gorm:"index;not null" json:"scheduled_time"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`

	Evidence     EvidencePayload     `gorm:"type:json" json:"evidence"`
	Response     ResponseMeta        `gorm:"type:json" json:"response"`
	Verification *VerificationResult `gorm:"type:json" json:"verification,omitempty"`

	// 错过后是否已挂接升级事件；注解属性，不是独立状态
	Escalated bool `gorm:"default:false" json:"escalated"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (CheckIn) TableName() string {
	return "check_ins"
}

// Deadline 超过该时间点未提交则判定为missed
func (c *CheckIn) Deadline(schedule *CheckInSchedule) time.Time {
	total := time.Duration(schedule.MissedTimeoutMinutes+schedule.GracePeriodMinutes) * time.Minute
	return c.ScheduledTime.Add(total)
}

// Reminder 提醒通知，仅存在于投递前，不落库
type Reminder struct {
	CheckInID   uint
	UserID      uint
	LeadMinutes int
	FireAt      time.Time
	Message     string
}
