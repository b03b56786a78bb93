package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emergencize-checkin-service/models"
)

func dailySchedule() *models.CheckInSchedule {
	return &models.CheckInSchedule{
		ID:         1,
		UserID:     1,
		Name:       "每日签到",
		Frequency:  models.FrequencyDaily,
		StartTime:  "09:00",
		EndTime:    "09:30",
		Timezone:   "UTC",
		ActiveDays: models.WeekdayList{0, 1, 2, 3, 4, 5, 6},
	}
}

func TestNextCheckInTimeDaily(t *testing.T) {
	calc := NewRecurrenceCalculator()
	schedule := dailySchedule()

	// 窗口起点之前：当天09:00
	from := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) // 周一
	next, ok := calc.NextCheckInTime(schedule, from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), next)

	// 窗口起点之后：推到次日
	from = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	next, ok = calc.NextCheckInTime(schedule, from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), next)
}

func TestNextCheckInTimeDailySkipsInactiveDays(t *testing.T) {
	calc := NewRecurrenceCalculator()
	schedule := dailySchedule()
	schedule.ActiveDays = models.WeekdayList{1, 2, 3, 4, 5} // 仅工作日

	// 周五09:00之后 → 下周一
	from := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC) // 周五
	next, ok := calc.NextCheckInTime(schedule, from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestNextCheckInTimeWeekly(t *testing.T) {
	calc := NewRecurrenceCalculator()
	schedule := dailySchedule()
	schedule.Frequency = models.FrequencyWeekly
	schedule.ActiveDays = models.WeekdayList{3} // 周三

	from := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // 周一
	next, ok := calc.NextCheckInTime(schedule, from)
	require.True(t, ok)
	// weekly在下一个激活日基础上再推一周
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Wednesday, next.Weekday())
}

func TestNextCheckInTimeHourly(t *testing.T) {
	calc := NewRecurrenceCalculator()
	schedule := dailySchedule()
	schedule.Frequency = models.FrequencyHourly
	schedule.StartTime = "08:00"
	schedule.EndTime = "18:00"

	// 窗口内：滚动到下一个整点槽位
	from := time.Date(2026, 3, 2, 10, 20, 0, 0, time.UTC)
	next, ok := calc.NextCheckInTime(schedule, from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), next)

	// 窗口末尾之后：次日窗口起点
	from = time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)
	next, ok = calc.NextCheckInTime(schedule, from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), next)
}

func TestNextCheckInTimeCustom(t *testing.T) {
	calc := NewRecurrenceCalculator()
	schedule := dailySchedule()
	schedule.Frequency = models.FrequencyCustom
	schedule.CustomIntervalMinutes = 90
	schedule.StartTime = "08:00"
	schedule.EndTime = "20:00"

	// 间隔后仍在窗口内
	from := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	next, ok := calc.NextCheckInTime(schedule, from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), next)

	// 间隔后越过窗口末尾 → 次日窗口起点
	from = time.Date(2026, 3, 2, 19, 30, 0, 0, time.UTC)
	next, ok = calc.NextCheckInTime(schedule, from)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC), next)
}

func TestNextCheckInTimeUsesScheduleTimezone(t *testing.T) {
	calc := NewRecurrenceCalculator()
	schedule := dailySchedule()
	schedule.Timezone = "Asia/Shanghai"

	// UTC 00:00 = 上海 08:00，当天09:00（上海）仍未到
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	next, ok := calc.NextCheckInTime(schedule, from)
	require.True(t, ok)

	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, loc).UTC(), next.UTC())
}

func TestNextCheckInTimeNoActiveDays(t *testing.T) {
	calc := NewRecurrenceCalculator()
	schedule := dailySchedule()
	schedule.ActiveDays = models.WeekdayList{}

	_, ok := calc.NextCheckInTime(schedule, time.Now())
	assert.False(t, ok)
}

func TestInQuietHours(t *testing.T) {
	q := models.QuietHoursSpec{Enabled: true, Start: "22:00", End: "07:00"}

	// 跨夜时段：深夜与凌晨都命中
	assert.True(t, InQuietHours(q, time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), time.UTC))
	assert.True(t, InQuietHours(q, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), time.UTC))
	assert.False(t, InQuietHours(q, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), time.UTC))

	// 同日时段
	q = models.QuietHoursSpec{Enabled: true, Start: "12:00", End: "14:00"}
	assert.True(t, InQuietHours(q, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), time.UTC))
	assert.False(t, InQuietHours(q, time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC), time.UTC))

	// 未启用
	q.Enabled = false
	assert.False(t, InQuietHours(q, time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), time.UTC))
}
