package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchedule() *CheckInSchedule {
	return &CheckInSchedule{
		UserID:     1,
		Name:       "每日安全签到",
		Frequency:  FrequencyDaily,
		StartTime:  "09:00",
		EndTime:    "09:30",
		Timezone:   "Asia/Shanghai",
		ActiveDays: WeekdayList{1, 2, 3, 4, 5},
		EscalationLevels: EscalationLevelList{
			{Level: 1, DelayMinutes: 0, Actions: []EscalationAction{{Type: ActionPush, Enabled: true}}},
		},
		MissedTimeoutMinutes: 30,
		GracePeriodMinutes:   15,
	}
}

func TestScheduleValidateOK(t *testing.T) {
	assert.Empty(t, validSchedule().Validate())
}

func TestScheduleValidateProblems(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CheckInSchedule)
	}{
		{"缺少用户", func(s *CheckInSchedule) { s.UserID = 0 }},
		{"缺少名称", func(s *CheckInSchedule) { s.Name = "" }},
		{"非法频率", func(s *CheckInSchedule) { s.Frequency = "yearly" }},
		{"custom频率缺少间隔", func(s *CheckInSchedule) { s.Frequency = FrequencyCustom }},
		{"daily频率带自定义间隔", func(s *CheckInSchedule) { s.CustomIntervalMinutes = 30 }},
		{"没有激活星期", func(s *CheckInSchedule) { s.ActiveDays = WeekdayList{} }},
		{"非法星期值", func(s *CheckInSchedule) { s.ActiveDays = WeekdayList{7} }},
		{"非法起始时刻", func(s *CheckInSchedule) { s.StartTime = "9:00" }},
		{"非法结束时刻", func(s *CheckInSchedule) { s.EndTime = "25:00" }},
		{"空时区", func(s *CheckInSchedule) { s.Timezone = "" }},
		{"未知时区", func(s *CheckInSchedule) { s.Timezone = "Mars/Olympus" }},
		{"没有升级层级", func(s *CheckInSchedule) { s.EscalationLevels = EscalationLevelList{} }},
		{"层级缺少动作", func(s *CheckInSchedule) {
			s.EscalationLevels = EscalationLevelList{{Level: 1}}
		}},
		{"负宽限期", func(s *CheckInSchedule) { s.GracePeriodMinutes = -1 }},
		{"负超时", func(s *CheckInSchedule) { s.MissedTimeoutMinutes = -5 }},
		{"提醒提前量超过超时", func(s *CheckInSchedule) { s.ReminderLeadTimes = IntList{45} }},
		{"零超时带提醒", func(s *CheckInSchedule) {
			s.MissedTimeoutMinutes = 0
			s.ReminderLeadTimes = IntList{10}
		}},
		{"负迟到上限", func(s *CheckInSchedule) { s.MaxLateMinutes = -1 }},
		{"负位置容差", func(s *CheckInSchedule) { s.LocationToleranceMeters = -10 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			schedule := validSchedule()
			tc.mutate(schedule)
			assert.NotEmpty(t, schedule.Validate())
		})
	}
}

func TestParseClock(t *testing.T) {
	ct, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8, ct.Hour)
	assert.Equal(t, 30, ct.Minute)

	for _, bad := range []string{"", "8:30", "08:60", "24:00", "ab:cd", "08-30"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "input=%q", bad)
	}
}

func TestClockTimeAt(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	day := time.Date(2026, 3, 2, 18, 45, 0, 0, loc)
	at := ClockTime{Hour: 9, Minute: 15}.At(day, loc)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 15, 0, 0, loc), at)
}

func TestCheckInDeadline(t *testing.T) {
	schedule := validSchedule()
	checkIn := &CheckIn{ScheduledTime: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	// 30分钟超时 + 15分钟宽限
	assert.Equal(t, time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC), checkIn.Deadline(schedule))
}

func TestWeekdayListContains(t *testing.T) {
	l := WeekdayList{1, 3, 5}
	assert.True(t, l.Contains(time.Monday))
	assert.True(t, l.Contains(time.Friday))
	assert.False(t, l.Contains(time.Sunday))
}
