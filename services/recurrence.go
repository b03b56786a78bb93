package services

import (
	"time"

	"emergencize-checkin-service/models"
)

// RecurrenceCalculator 根据签到计划定义计算下一次签到时间点。
// 纯计算，不持有状态。
type RecurrenceCalculator struct{}

// NewRecurrenceCalculator 创建计算器
func NewRecurrenceCalculator() *RecurrenceCalculator {
	return &RecurrenceCalculator{}
}

// NextCheckInTime 计算from之后（严格不早于from）的下一次签到时间。
// 仅当计划没有任何激活星期时返回false（校验应当阻止这种计划存在）。
// 所有计算都使用计划自身存储的时区，而不是引擎所在时区。
func (c *RecurrenceCalculator) NextCheckInTime(schedule *models.CheckInSchedule, from time.Time) (time.Time, bool) {
	if len(schedule.ActiveDays) == 0 {
		return time.Time{}, false
	}

	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		loc = time.UTC
	}
	start, err := models.ParseClock(schedule.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	end, err := models.ParseClock(schedule.EndTime)
	if err != nil {
		return time.Time{}, false
	}

	switch schedule.Frequency {
	case models.FrequencyCustom:
		// 直接对from加自定义间隔，落在活动窗口外时推进到下一个窗口起点
		candidate := from.Add(time.Duration(schedule.CustomIntervalMinutes) * time.Minute)
		if c.inActiveWindow(schedule, candidate, loc, start, end) {
			return candidate, true
		}
		return c.nextWindowStart(schedule, candidate, loc, start)

	case models.FrequencyHourly:
		// 当天窗口内按小时滚动，超出窗口末尾则换到下一个激活日
		day := from.In(loc)
		if schedule.ActiveDays.Contains(day.Weekday()) {
			windowStart := start.At(day, loc)
			windowEnd := end.At(day, loc)
			if from.Before(windowStart) {
				return windowStart, true
			}
			if from.Before(windowEnd) {
				elapsed := from.Sub(windowStart)
				slots := int(elapsed/time.Hour) + 1
				candidate := windowStart.Add(time.Duration(slots) * time.Hour)
				if candidate.Before(windowEnd) {
					return candidate, true
				}
			}
		}
		return c.nextWindowStart(schedule, from, loc, start)

	default:
		// daily / weekly：今天窗口起点已过则推到下一天，再逐日走到激活星期
		day := from.In(loc)
		if !from.Before(start.At(day, loc)) {
			day = day.AddDate(0, 0, 1)
		}
		found := false
		for i := 0; i < 8; i++ {
			if schedule.ActiveDays.Contains(day.Weekday()) {
				found = true
				break
			}
			day = day.AddDate(0, 0, 1)
		}
		if !found {
			return time.Time{}, false
		}
		if schedule.Frequency == models.FrequencyWeekly {
			day = day.AddDate(0, 0, 7)
		}
		return start.At(day, loc), true
	}
}

// inActiveWindow 判断t是否落在某个激活日的[start,end)窗口内
func (c *RecurrenceCalculator) inActiveWindow(schedule *models.CheckInSchedule, t time.Time, loc *time.Location, start, end models.ClockTime) bool {
	local := t.In(loc)
	if !schedule.ActiveDays.Contains(local.Weekday()) {
		return false
	}
	windowStart := start.At(local, loc)
	windowEnd := end.At(local, loc)
	return !local.Before(windowStart) && local.Before(windowEnd)
}

// nextWindowStart 返回严格晚于after的下一个激活日窗口起点
func (c *RecurrenceCalculator) nextWindowStart(schedule *models.CheckInSchedule, after time.Time, loc *time.Location, start models.ClockTime) (time.Time, bool) {
	day := after.In(loc)
	for i := 0; i < 15; i++ {
		windowStart := start.At(day, loc)
		if windowStart.After(after) && schedule.ActiveDays.Contains(day.Weekday()) {
			return windowStart, true
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// InQuietHours 判断t是否落在免打扰时段内（支持跨夜时段）
func InQuietHours(q models.QuietHoursSpec, t time.Time, loc *time.Location) bool {
	if !q.Enabled {
		return false
	}
	start, err := models.ParseClock(q.Start)
	if err != nil {
		return false
	}
	end, err := models.ParseClock(q.End)
	if err != nil {
		return false
	}

	local := t.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	startMin := start.Hour*60 + start.Minute
	endMin := end.Hour*60 + end.Minute

	if startMin <= endMin {
		return minutes >= startMin && minutes < endMin
	}
	// 跨夜时段，如 22:00 - 07:00
	return minutes >= startMin || minutes < endMin
}
