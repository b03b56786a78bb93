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

// CheckInController 处理签到实例相关的请求
type CheckInController struct {
	BaseControllerImpl
}

// NewCheckInController 创建一个新的签到控制器
func (f *ControllerFactory) NewCheckInController(ctx *gin.Context) *CheckInController {
	return &CheckInController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// SubmitCheckInRequest 表示签到提交请求
type SubmitCheckInRequest struct {
	Location   *models.GeoPoint   `json:"location"`
	PhotoRef   string             `json:"photo_ref" example:"photos/20230701/abc.jpg"`
	Message    string             `json:"message" example:"一切平安"`
	Vitals     map[string]float64 `json:"vitals"`
	SafeWord   string             `json:"safe_word" example:"蓝色海豚"`
	Channel    string             `json:"channel" example:"app"` // app/wearable/sms/voice/manual
	DeviceInfo string             `json:"device_info" example:"iPhone 14, iOS 17"`
}

// HandleCheckInFunc 返回一个处理签到请求的Gin处理函数
func HandleCheckInFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewCheckInController(ctx)

		switch method {
		case "submit":
			controller.SubmitCheckIn()
		case "get":
			controller.GetCheckIn()
		case "listByUser":
			controller.ListCheckInsByUser()
		case "listBySchedule":
			controller.ListCheckInsBySchedule()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// SubmitCheckIn 处理签到提交
// @Summary      提交签到
// @Description  提交签到凭据，完成校验打分并解除关联的升级事件
// @Tags         CheckIn
// @Accept       json
// @Produce      json
// @Param        id path int true "签到ID"
// @Param        request body SubmitCheckInRequest true "签到凭据"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /checkins/{id}/submit [post]
func (c *CheckInController) SubmitCheckIn() {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的签到ID")
		return
	}

	var req SubmitCheckInRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	evidence := models.EvidencePayload{
		Location: req.Location,
		PhotoRef: req.PhotoRef,
		Message:  req.Message,
		Vitals:   req.Vitals,
		SafeWord: req.SafeWord,
	}
	meta := models.ResponseMeta{
		Channel:    req.Channel,
		DeviceInfo: req.DeviceInfo,
		Origin:     c.Context.ClientIP(),
	}
	if meta.Channel == "" {
		meta.Channel = models.ChannelApp
	}

	checkIn, err := c.Container.GetEngine().SubmitCheckIn(uint(id), evidence, meta)
	if err != nil {
		var missingErr *services.MissingFieldsError
		switch {
		case errors.As(err, &missingErr):
			response.FailWithMessage(c.Context, code.ErrCheckInMissingField, missingErr.Error(), missingErr.Fields)
		case errors.Is(err, services.ErrAlreadyResolved):
			response.Fail(c.Context, code.ErrCheckInAlreadyResolved, nil)
		case errors.Is(err, services.ErrNotFound):
			response.Fail(c.Context, code.ErrCheckInNotFound, nil)
		default:
			response.Fail(c.Context, code.ErrDatabase, nil)
		}
		return
	}
	response.Success(c.Context, checkIn)
}

// GetCheckIn 处理获取签到详情的请求
// @Summary      获取签到详情
// @Tags         CheckIn
// @Produce      json
// @Param        id path int true "签到ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /checkins/{id} [get]
func (c *CheckInController) GetCheckIn() {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的签到ID")
		return
	}

	checkInService := c.Container.GetService("checkin").(services.InterfaceCheckInService)
	checkIn, err := checkInService.GetCheckIn(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.Fail(c.Context, code.ErrCheckInNotFound, nil)
		} else {
			response.Fail(c.Context, code.ErrDatabase, nil)
		}
		return
	}
	response.Success(c.Context, checkIn)
}

// ListCheckInsByUser 处理获取用户签到历史的请求
// @Summary      获取用户签到历史
// @Tags         CheckIn
// @Produce      json
// @Param        id path int true "用户ID"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页条数" default(20)
// @Success      200  {object}  map[string]interface{}
// @Router       /users/{id}/checkins [get]
func (c *CheckInController) ListCheckInsByUser() {
	userID, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的用户ID")
		return
	}
	query := c.pagination()

	checkInService := c.Container.GetService("checkin").(services.InterfaceCheckInService)
	checkIns, total, err := checkInService.ListCheckInsByUser(uint(userID), query.Page, query.PageSize)
	if err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, gin.H{
		"items":      checkIns,
		"pagination": models.NewPaginationResult(int(total), query.Page, query.PageSize),
	})
}

// ListCheckInsBySchedule 处理获取计划签到历史的请求
// @Summary      获取计划签到历史
// @Tags         CheckIn
// @Produce      json
// @Param        id path int true "计划ID"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页条数" default(20)
// @Success      200  {object}  map[string]interface{}
// @Router       /schedules/{id}/checkins [get]
func (c *CheckInController) ListCheckInsBySchedule() {
	scheduleID, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的计划ID")
		return
	}
	query := c.pagination()

	checkInService := c.Container.GetService("checkin").(services.InterfaceCheckInService)
	checkIns, total, err := checkInService.ListCheckInsBySchedule(uint(scheduleID), query.Page, query.PageSize)
	if err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, gin.H{
		"items":      checkIns,
		"pagination": models.NewPaginationResult(int(total), query.Page, query.PageSize),
	})
}

// pagination 解析分页参数
func (c *CheckInController) pagination() models.PaginationQuery {
	var query models.PaginationQuery
	_ = c.Context.ShouldBindQuery(&query)
	query.Normalize(20)
	return query
}
