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

// EscalationController 处理升级事件相关的请求
type EscalationController struct {
	BaseControllerImpl
}

// NewEscalationController 创建一个新的升级事件控制器
func (f *ControllerFactory) NewEscalationController(ctx *gin.Context) *EscalationController {
	return &EscalationController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// ResolveEscalationRequest 表示解除升级事件的请求
type ResolveEscalationRequest struct {
	Method models.ResolutionMethod `json:"method" binding:"required" example:"manual_cancel"` // manual_cancel/false_alarm/emergency_confirmed
	Notes  string                  `json:"notes" example:"已电话确认本人平安"`
}

// HandleEscalationFunc 返回一个处理升级事件请求的Gin处理函数
func HandleEscalationFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewEscalationController(ctx)

		switch method {
		case "get":
			controller.GetEscalation()
		case "resolve":
			controller.ResolveEscalation()
		case "listByUser":
			controller.ListEscalationsByUser()
		case "listBySchedule":
			controller.ListEscalationsBySchedule()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// GetEscalation 处理获取升级事件详情的请求
// @Summary      获取升级事件详情
// @Description  返回升级事件及其完整的动作执行日志
// @Tags         Escalation
// @Produce      json
// @Param        id path int true "事件ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /escalations/{id} [get]
func (c *EscalationController) GetEscalation() {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的事件ID")
		return
	}

	escalationService := c.Container.GetService("escalation").(services.InterfaceEscalationService)
	event, err := escalationService.GetEscalation(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.Fail(c.Context, code.ErrEscalationNotFound, nil)
		} else {
			response.Fail(c.Context, code.ErrDatabase, nil)
		}
		return
	}
	response.Success(c.Context, event)
}

// ResolveEscalation 处理手动解除升级事件的请求
// @Summary      解除升级事件
// @Description  手动解除处置中的升级事件并取消后续层级
// @Tags         Escalation
// @Accept       json
// @Produce      json
// @Param        id path int true "事件ID"
// @Param        request body ResolveEscalationRequest true "解除方式"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /escalations/{id}/resolve [post]
func (c *EscalationController) ResolveEscalation() {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的事件ID")
		return
	}

	var req ResolveEscalationRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}
	switch req.Method {
	case models.ResolutionManualCancel, models.ResolutionFalseAlarm, models.ResolutionEmergencyConfirmed:
	default:
		response.ParamError(c.Context, "不支持的解除方式")
		return
	}

	var resolvedBy uint
	if v, exists := c.Context.Get("userID"); exists {
		if f, ok := v.(float64); ok {
			resolvedBy = uint(f)
		}
	}

	event, err := c.Container.GetEngine().ResolveEscalation(uint(id), req.Method, resolvedBy, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadyResolved):
			response.Fail(c.Context, code.ErrEscalationAlreadyResolved, nil)
		case errors.Is(err, services.ErrNotFound):
			response.Fail(c.Context, code.ErrEscalationNotFound, nil)
		default:
			response.Fail(c.Context, code.ErrDatabase, nil)
		}
		return
	}
	response.Success(c.Context, event)
}

// ListEscalationsByUser 处理获取用户升级事件列表的请求
// @Summary      获取用户的升级事件列表
// @Tags         Escalation
// @Produce      json
// @Param        id path int true "用户ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /users/{id}/escalations [get]
func (c *EscalationController) ListEscalationsByUser() {
	userID, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的用户ID")
		return
	}

	escalationService := c.Container.GetService("escalation").(services.InterfaceEscalationService)
	events, err := escalationService.ListEscalationsByUser(uint(userID))
	if err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, events)
}

// ListEscalationsBySchedule 处理获取计划升级事件列表的请求
// @Summary      获取计划的升级事件列表
// @Tags         Escalation
// @Produce      json
// @Param        id path int true "计划ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /schedules/{id}/escalations [get]
func (c *EscalationController) ListEscalationsBySchedule() {
	scheduleID, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的计划ID")
		return
	}

	escalationService := c.Container.GetService("escalation").(services.InterfaceEscalationService)
	events, err := escalationService.ListEscalationsBySchedule(uint(scheduleID))
	if err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, events)
}
