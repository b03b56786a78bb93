package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ScheduleFrequency 签到计划频率
type ScheduleFrequency string

const (
	FrequencyHourly ScheduleFrequency = "hourly"
	FrequencyDaily  ScheduleFrequency = "daily"
	FrequencyWeekly ScheduleFrequency = "weekly"
	FrequencyCustom ScheduleFrequency = "custom"
)

// ScheduleCategory 签到计划类别
type ScheduleCategory string

const (
	CategoryRegular  ScheduleCategory = "regular"
	CategoryTravel   ScheduleCategory = "travel"
	CategoryWork     ScheduleCategory = "work"
	CategoryActivity ScheduleCategory = "activity"
	CategoryMedical  ScheduleCategory = "medical"
	CategoryCustom   ScheduleCategory = "custom"
)

// ActionType 升级动作类型
type ActionType string

const (
	ActionSMS               ActionType = "sms"
	ActionCall              ActionType = "call"
	ActionEmail             ActionType = "email"
	ActionPush              ActionType = "push"
	ActionEmergencyServices ActionType = "emergency_services"
	ActionLocationShare     ActionType = "location_share"
)

// EscalationAction 单个升级动作配置
type EscalationAction struct {
	Type     ActionType `json:"type"`
	Enabled  bool       `json:"enabled"`
	Message  string     `json:"message,omitempty"` // 可选的消息模板
	Priority int        `json:"priority"`
}

// EscalationLevel 升级层级，按顺序执行
type EscalationLevel struct {
	Level        int                `json:"level"`
	DelayMinutes int                `json:"delay_minutes"` // 相对上一层级完成后的延迟
	Actions      []EscalationAction `json:"actions"`
	ContactIDs   []uint             `json:"contact_ids,omitempty"` // 本层级的联系人
}

// EscalationLevelList 以JSON列存储的升级层级列表
type EscalationLevelList []EscalationLevel

func (l EscalationLevelList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *EscalationLevelList) Scan(src interface{}) error  { return jsonScan(src, l) }

// WeekdayList 激活的星期集合（0=周日 ... 6=周六），以JSON列存储
type WeekdayList []int

func (l WeekdayList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *WeekdayList) Scan(src interface{}) error  { return jsonScan(src, l) }

// Contains 判断某个星期是否激活
func (l WeekdayList) Contains(weekday time.Weekday) bool {
	for _, d := range l {
		if d == int(weekday) {
			return true
		}
	}
	return false
}

// IntList 以JSON列存储的整数列表
type IntList []int

func (l IntList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *IntList) Scan(src interface{}) error  { return jsonScan(src, l) }

// UintList 以JSON列存储的ID列表
type UintList []uint

func (l UintList) Value() (driver.Value, error) { return jsonValue(l) }
func (l *UintList) Scan(src interface{}) error  { return jsonScan(src, l) }

// QuietHoursSpec 免打扰时段
type QuietHoursSpec struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start,omitempty"` // "22:00"
	End     string `json:"end,omitempty"`   // "07:00"
}

func (q QuietHoursSpec) Value() (driver.Value, error) { return jsonValue(q) }
func (q *QuietHoursSpec) Scan(src interface{}) error  { return jsonScan(src, q) }

// CheckInSchedule 表示某个用户的周期性签到计划
type CheckInSchedule struct {
	ID       uint              `gorm:"primaryKey" json:"id"`
	UserID   uint              `gorm:"index;not null" json:"user_id"`
	Name     string            `gorm:"type:varchar(100);not null" json:"name"`
	Category ScheduleCategory  `gorm:"type:varchar(20);default:'regular'" json:"category"`
	Frequency ScheduleFrequency `gorm:"type:varchar(20);not null" json:"frequency"`
	// 仅当 Frequency 为 custom 时有效
	CustomIntervalMinutes int `json:"custom_interval_minutes,omitempty"`

	// 活动时间窗口
	StartTime  string      `gorm:"type:varchar(5);not null" json:"start_time"` // "08:00"
	EndTime    string      `gorm:"type:varchar(5);not null" json:"end_time"`   // "08:30"
	Timezone   string      `gorm:"type:varchar(64);not null" json:"timezone"`  // IANA时区名
	ActiveDays WeekdayList `gorm:"type:json" json:"active_days"`

	// 所需签到凭据
	RequireLocation bool `json:"require_location"`
	RequirePhoto    bool `json:"require_photo"`
	RequireMessage  bool `json:"require_message"`
	RequireVitals   bool `json:"require_vitals"`
	RequireSafeWord bool `json:"require_safe_word"`

	// 升级配置
	MissedTimeoutMinutes int                 `gorm:"default:30" json:"missed_timeout_minutes"` // 计划时间后多久进入宽限期
	EscalationLevels     EscalationLevelList `gorm:"type:json" json:"escalation_levels"`
	EmergencyContactIDs  UintList            `gorm:"type:json" json:"emergency_contact_ids"`
	AutoAlert            bool                `gorm:"default:true" json:"auto_alert"`

	// 调优设置
	GracePeriodMinutes      int            `gorm:"default:15" json:"grace_period_minutes"`
	ReminderLeadTimes       IntList        `gorm:"type:json" json:"reminder_lead_times"` // 提前提醒分钟数
	QuietHours              QuietHoursSpec `gorm:"type:json" json:"quiet_hours"`
	LocationToleranceMeters float64        `gorm:"default:100" json:"location_tolerance_meters"`
	AllowLateCheckIn        bool           `gorm:"default:true" json:"allow_late_check_in"`
	MaxLateMinutes          int            `gorm:"default:60" json:"max_late_minutes"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CheckInSchedule) TableName() string {
	return "check_in_schedules"
}

// Validate 校验计划不变式，返回字段级错误消息列表
func (s *CheckInSchedule) Validate() []string {
	var problems []string

	if s.UserID == 0 {
		problems = append(problems, "user_id: 必须指定所属用户")
	}
	if s.Name == "" {
		problems = append(problems, "name: 计划名称不能为空")
	}
	switch s.Frequency {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		if s.CustomIntervalMinutes != 0 {
			problems = append(problems, "custom_interval_minutes: 仅custom频率允许设置自定义间隔")
		}
	case FrequencyCustom:
		if s.CustomIntervalMinutes <= 0 {
			problems = append(problems, "custom_interval_minutes: custom频率必须设置正的间隔分钟数")
		}
	default:
		problems = append(problems, fmt.Sprintf("frequency: 不支持的频率 %q", s.Frequency))
	}
	if len(s.ActiveDays) == 0 {
		problems = append(problems, "active_days: 至少需要一个激活的星期")
	}
	for _, d := range s.ActiveDays {
		if d < 0 || d > 6 {
			problems = append(problems, fmt.Sprintf("active_days: 非法的星期值 %d", d))
			break
		}
	}
	if _, err := ParseClock(s.StartTime); err != nil {
		problems = append(problems, "start_time: "+err.Error())
	}
	if _, err := ParseClock(s.EndTime); err != nil {
		problems = append(problems, "end_time: "+err.Error())
	}
	if s.Timezone == "" {
		problems = append(problems, "timezone: 时区不能为空")
	} else if _, err := time.LoadLocation(s.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("timezone: 无法识别的时区 %q", s.Timezone))
	}
	if len(s.EscalationLevels) == 0 {
		problems = append(problems, "escalation_levels: 至少需要一个升级层级")
	}
	for i, level := range s.EscalationLevels {
		if level.DelayMinutes < 0 {
			problems = append(problems, fmt.Sprintf("escalation_levels[%d]: 延迟分钟数不能为负", i))
		}
		if len(level.Actions) == 0 {
			problems = append(problems, fmt.Sprintf("escalation_levels[%d]: 层级至少需要一个动作", i))
		}
	}
	if s.GracePeriodMinutes < 0 {
		problems = append(problems, "grace_period_minutes: 宽限期不能为负")
	}
	if s.MissedTimeoutMinutes < 0 {
		problems = append(problems, "missed_timeout_minutes: 超时时间不能为负")
	}
	for _, lead := range s.ReminderLeadTimes {
		if lead < 0 {
			problems = append(problems, "reminder_lead_times: 提醒提前量不能为负")
			break
		}
		if lead >= s.MissedTimeoutMinutes {
			problems = append(problems, "reminder_lead_times: 提醒提前量必须小于升级超时时间")
			break
		}
	}
	if s.MaxLateMinutes < 0 {
		problems = append(problems, "max_late_minutes: 最大迟到分钟数不能为负")
	}
	if s.LocationToleranceMeters < 0 {
		problems = append(problems, "location_tolerance_meters: 位置容差不能为负")
	}

	return problems
}

// ClockTime 一天内的时刻
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock 解析 "HH:MM" 格式的时刻
func ParseClock(s string) (ClockTime, error) {
	var ct ClockTime
	if len(s) != 5 || s[2] != ':' {
		return ct, fmt.Errorf("时刻必须为 HH:MM 格式, 得到 %q", s)
	}
	if _, err := fmt.Sscanf(s, "%02d:%02d", &ct.Hour, &ct.Minute); err != nil {
		return ct, fmt.Errorf("时刻必须为 HH:MM 格式, 得到 %q", s)
	}
	if ct.Hour < 0 || ct.Hour > 23 || ct.Minute < 0 || ct.Minute > 59 {
		return ct, fmt.Errorf("时刻超出范围: %q", s)
	}
	return ct, nil
}

// At 返回给定日期在指定时区下该时刻的时间点
func (ct ClockTime) At(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), ct.Hour, ct.Minute, 0, 0, loc)
}
