package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"emergencize-checkin-service/internal/error/code"
	"emergencize-checkin-service/internal/error/response"
	"emergencize-checkin-service/models"
	"emergencize-checkin-service/services"
	"emergencize-checkin-service/services/container"

	"github.com/gin-gonic/gin"
)

// ScheduleController 处理签到计划相关的请求
type ScheduleController struct {
	BaseControllerImpl
}

// NewScheduleController 创建一个新的计划控制器
func (f *ControllerFactory) NewScheduleController(ctx *gin.Context) *ScheduleController {
	return &ScheduleController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// ScheduleRequest 表示创建或更新计划的请求
type ScheduleRequest struct {
	UserID                uint                       `json:"user_id" binding:"required" example:"1"`
	Name                  string                     `json:"name" binding:"required" example:"早间安全签到"`
	Category              models.ScheduleCategory    `json:"category" example:"regular"`
	Frequency             models.ScheduleFrequency   `json:"frequency" binding:"required" example:"daily"`
	CustomIntervalMinutes int                        `json:"custom_interval_minutes" example:"0"`
	StartTime             string                     `json:"start_time" binding:"required" example:"08:00"`
	EndTime               string                     `json:"end_time" binding:"required" example:"08:30"`
	Timezone              string                     `json:"timezone" binding:"required" example:"Asia/Shanghai"`
	ActiveDays            []int                      `json:"active_days" binding:"required" example:"1,2,3,4,5"`
	RequireLocation       bool                       `json:"require_location"`
	RequirePhoto          bool                       `json:"require_photo"`
	RequireMessage        bool                       `json:"require_message"`
	RequireVitals         bool                       `json:"require_vitals"`
	RequireSafeWord       bool                       `json:"require_safe_word"`
	MissedTimeoutMinutes  int                        `json:"missed_timeout_minutes" example:"30"`
	EscalationLevels      []models.EscalationLevel   `json:"escalation_levels" binding:"required"`
	EmergencyContactIDs   []uint                     `json:"emergency_contact_ids" example:"1,2"`
	AutoAlert             *bool                      `json:"auto_alert"`
	GracePeriodMinutes    int                        `json:"grace_period_minutes" example:"15"`
	ReminderLeadTimes     []int                      `json:"reminder_lead_times" example:"10,5"`
	QuietHours            *models.QuietHoursSpec     `json:"quiet_hours"`
	LocationTolerance     float64                    `json:"location_tolerance_meters" example:"100"`
	AllowLateCheckIn      *bool                      `json:"allow_late_check_in"`
	MaxLateMinutes        int                        `json:"max_late_minutes" example:"60"`
}

// toModel 将请求转换为计划模型
func (r *ScheduleRequest) toModel() *models.CheckInSchedule {
	schedule := &models.CheckInSchedule{
		UserID:                r.UserID,
		Name:                  r.Name,
		Category:              r.Category,
		Frequency:             r.Frequency,
		CustomIntervalMinutes: r.CustomIntervalMinutes,
		StartTime:             r.StartTime,
		EndTime:               r.EndTime,
		Timezone:              r.Timezone,
		ActiveDays:            models.WeekdayList(r.ActiveDays),
		RequireLocation:       r.RequireLocation,
		RequirePhoto:          r.RequirePhoto,
		RequireMessage:        r.RequireMessage,
		RequireVitals:         r.RequireVitals,
		RequireSafeWord:       r.RequireSafeWord,
		MissedTimeoutMinutes:  r.MissedTimeoutMinutes,
		EscalationLevels:      models.EscalationLevelList(r.EscalationLevels),
		EmergencyContactIDs:   models.UintList(r.EmergencyContactIDs),
		GracePeriodMinutes:    r.GracePeriodMinutes,
		ReminderLeadTimes:     models.IntList(r.ReminderLeadTimes),
		LocationToleranceMeters: r.LocationTolerance,
		MaxLateMinutes:        r.MaxLateMinutes,
		AutoAlert:             true,
		AllowLateCheckIn:      true,
		IsActive:              true,
	}
	if r.Category == "" {
		schedule.Category = models.CategoryRegular
	}
	if r.AutoAlert != nil {
		schedule.AutoAlert = *r.AutoAlert
	}
	if r.AllowLateCheckIn != nil {
		schedule.AllowLateCheckIn = *r.AllowLateCheckIn
	}
	if r.QuietHours != nil {
		schedule.QuietHours = *r.QuietHours
	}
	if r.MissedTimeoutMinutes == 0 {
		schedule.MissedTimeoutMinutes = 30
	}
	if r.GracePeriodMinutes == 0 {
		schedule.GracePeriodMinutes = 15
	}
	if r.LocationTolerance == 0 {
		schedule.LocationToleranceMeters = 100
	}
	return schedule
}

// HandleScheduleFunc 返回一个处理计划请求的Gin处理函数
func HandleScheduleFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewScheduleController(ctx)

		switch method {
		case "create":
			controller.CreateSchedule()
		case "update":
			controller.UpdateSchedule()
		case "get":
			controller.GetSchedule()
		case "delete":
			controller.DeleteSchedule()
		case "listByUser":
			controller.ListSchedulesByUser()
		case "setActive":
			controller.SetScheduleActive()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// CreateSchedule 处理创建签到计划的请求
// @Summary      创建签到计划
// @Description  创建一个周期性安全签到计划并立即排班第一次签到
// @Tags         Schedule
// @Accept       json
// @Produce      json
// @Param        request body ScheduleRequest true "计划配置"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      429  {object}  map[string]interface{}
// @Router       /schedules [post]
func (c *ScheduleController) CreateSchedule() {
	var req ScheduleRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	engine := c.Container.GetEngine()
	schedule := req.toModel()
	if err := engine.CreateSchedule(schedule); err != nil {
		c.failScheduleError(err)
		return
	}
	response.Success(c.Context, schedule)
}

// UpdateSchedule 处理更新签到计划的请求
// @Summary      更新签到计划
// @Description  更新计划配置并按新配置重算下一次签到
// @Tags         Schedule
// @Accept       json
// @Produce      json
// @Param        id path int true "计划ID"
// @Param        request body ScheduleRequest true "计划配置"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /schedules/{id} [put]
func (c *ScheduleController) UpdateSchedule() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	var req ScheduleRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	schedule := req.toModel()
	schedule.ID = id
	if err := c.Container.GetEngine().UpdateSchedule(schedule); err != nil {
		c.failScheduleError(err)
		return
	}
	response.Success(c.Context, schedule)
}

// GetSchedule 处理获取签到计划详情的请求
// @Summary      获取签到计划
// @Tags         Schedule
// @Produce      json
// @Param        id path int true "计划ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /schedules/{id} [get]
func (c *ScheduleController) GetSchedule() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	scheduleService := c.Container.GetService("schedule").(services.InterfaceScheduleService)
	schedule, err := scheduleService.GetSchedule(id)
	if err != nil {
		c.failScheduleError(err)
		return
	}
	response.Success(c.Context, schedule)
}

// DeleteSchedule 处理删除签到计划的请求
// @Summary      删除签到计划
// @Description  删除计划并取消关联定时器，签到历史保留
// @Tags         Schedule
// @Produce      json
// @Param        id path int true "计划ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /schedules/{id} [delete]
func (c *ScheduleController) DeleteSchedule() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	if err := c.Container.GetEngine().DeleteSchedule(id); err != nil {
		c.failScheduleError(err)
		return
	}
	response.Success(c.Context, gin.H{"id": id})
}

// ListSchedulesByUser 处理获取用户计划列表的请求
// @Summary      获取用户的签到计划列表
// @Tags         Schedule
// @Produce      json
// @Param        id path int true "用户ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /users/{id}/schedules [get]
func (c *ScheduleController) ListSchedulesByUser() {
	userID, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的用户ID")
		return
	}

	scheduleService := c.Container.GetService("schedule").(services.InterfaceScheduleService)
	schedules, err := scheduleService.ListSchedulesByUser(uint(userID))
	if err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, schedules)
}

// SetScheduleActive 处理启停签到计划的请求
// @Summary      启用或停用签到计划
// @Tags         Schedule
// @Accept       json
// @Produce      json
// @Param        id path int true "计划ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /schedules/{id}/active [put]
func (c *ScheduleController) SetScheduleActive() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	schedule, err := c.Container.GetEngine().SetScheduleActive(id, *req.IsActive)
	if err != nil {
		c.failScheduleError(err)
		return
	}
	response.Success(c.Context, schedule)
}

// pathID 解析路径中的计划ID
func (c *ScheduleController) pathID() (uint, error) {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的计划ID")
		return 0, err
	}
	return uint(id), nil
}

// failScheduleError 将服务层错误映射到统一错误码
func (c *ScheduleController) failScheduleError(err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.FailWithMessage(c.Context, code.ErrScheduleValidation, "签到计划校验失败", validationErr.Problems)
	case errors.Is(err, services.ErrRateLimited):
		response.Fail(c.Context, code.ErrScheduleRateLimited, nil)
	case errors.Is(err, services.ErrNotFound):
		response.Fail(c.Context, code.ErrScheduleNotFound, nil)
	default:
		response.Fail(c.Context, code.ErrDatabase, nil)
	}
}
