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

// ContactController 处理紧急联系人相关的请求
type ContactController struct {
	BaseControllerImpl
}

// NewContactController 创建一个新的联系人控制器
func (f *ControllerFactory) NewContactController(ctx *gin.Context) *ContactController {
	return &ContactController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// ContactRequest 表示创建或更新联系人的请求
type ContactRequest struct {
	UserID        uint   `json:"user_id" binding:"required" example:"1"`
	Name          string `json:"name" binding:"required" example:"李华"`
	PhoneNumber   string `json:"phone_number" binding:"required" example:"13900139000"`
	Email         string `json:"email" example:"lihua@example.com"`
	Relation      string `json:"relation" example:"家人"`
	Priority      int    `json:"priority" example:"10"`
	NotifyBySMS   *bool  `json:"notify_by_sms"`
	NotifyByCall  *bool  `json:"notify_by_call"`
	NotifyByEmail *bool  `json:"notify_by_email"`
	Remark        string `json:"remark"`
}

// toModel 将请求转换为联系人模型
func (r *ContactRequest) toModel() *models.EmergencyContact {
	contact := &models.EmergencyContact{
		UserID:       r.UserID,
		Name:         r.Name,
		PhoneNumber:  r.PhoneNumber,
		Email:        r.Email,
		Relation:     r.Relation,
		Priority:     r.Priority,
		Remark:       r.Remark,
		NotifyBySMS:  true,
		NotifyByCall: true,
	}
	if r.NotifyBySMS != nil {
		contact.NotifyBySMS = *r.NotifyBySMS
	}
	if r.NotifyByCall != nil {
		contact.NotifyByCall = *r.NotifyByCall
	}
	if r.NotifyByEmail != nil {
		contact.NotifyByEmail = *r.NotifyByEmail
	}
	return contact
}

// HandleContactFunc 返回一个处理联系人请求的Gin处理函数
func HandleContactFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewContactController(ctx)

		switch method {
		case "create":
			controller.CreateContact()
		case "update":
			controller.UpdateContact()
		case "get":
			controller.GetContact()
		case "delete":
			controller.DeleteContact()
		case "listByUser":
			controller.ListContactsByUser()
		case "testNotify":
			controller.TestNotify()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// CreateContact 处理创建联系人的请求
// @Summary      创建紧急联系人
// @Tags         Contact
// @Accept       json
// @Produce      json
// @Param        request body ContactRequest true "联系人信息"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Router       /contacts [post]
func (c *ContactController) CreateContact() {
	var req ContactRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	contact := req.toModel()
	contactService := c.Container.GetService("contact").(services.InterfaceContactService)
	if err := contactService.CreateContact(contact); err != nil {
		c.failContactError(err)
		return
	}
	response.Success(c.Context, contact)
}

// UpdateContact 处理更新联系人的请求
// @Summary      更新紧急联系人
// @Tags         Contact
// @Accept       json
// @Produce      json
// @Param        id path int true "联系人ID"
// @Param        request body ContactRequest true "联系人信息"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /contacts/{id} [put]
func (c *ContactController) UpdateContact() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	var req ContactRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	contact := req.toModel()
	contact.ID = id
	contactService := c.Container.GetService("contact").(services.InterfaceContactService)
	if err := contactService.UpdateContact(contact); err != nil {
		c.failContactError(err)
		return
	}
	response.Success(c.Context, contact)
}

// GetContact 处理获取联系人详情的请求
// @Summary      获取紧急联系人详情
// @Tags         Contact
// @Produce      json
// @Param        id path int true "联系人ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /contacts/{id} [get]
func (c *ContactController) GetContact() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	contactService := c.Container.GetService("contact").(services.InterfaceContactService)
	contact, err := contactService.GetContact(id)
	if err != nil {
		c.failContactError(err)
		return
	}
	response.Success(c.Context, contact)
}

// DeleteContact 处理删除联系人的请求
// @Summary      删除紧急联系人
// @Tags         Contact
// @Produce      json
// @Param        id path int true "联系人ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /contacts/{id} [delete]
func (c *ContactController) DeleteContact() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	contactService := c.Container.GetService("contact").(services.InterfaceContactService)
	if err := contactService.DeleteContact(id); err != nil {
		c.failContactError(err)
		return
	}
	response.Success(c.Context, gin.H{"id": id})
}

// ListContactsByUser 处理获取用户联系人列表的请求
// @Summary      获取用户的紧急联系人列表
// @Tags         Contact
// @Produce      json
// @Param        id path int true "用户ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /users/{id}/contacts [get]
func (c *ContactController) ListContactsByUser() {
	userID, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的用户ID")
		return
	}

	contactService := c.Container.GetService("contact").(services.InterfaceContactService)
	contacts, err := contactService.ListContactsByUser(uint(userID))
	if err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, contacts)
}

// TestNotify 处理向联系人发送测试通知的请求
// @Summary      发送测试通知
// @Description  向联系人发送一条测试短信，用于确认联系方式可达
// @Tags         Contact
// @Produce      json
// @Param        id path int true "联系人ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]interface{}
// @Router       /contacts/{id}/test [post]
func (c *ContactController) TestNotify() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	contactService := c.Container.GetService("contact").(services.InterfaceContactService)
	contact, err := contactService.GetContact(id)
	if err != nil {
		c.failContactError(err)
		return
	}

	notifier := c.Container.GetService("notification").(services.InterfaceNotificationService)
	target := services.NotifyTarget{
		ContactID: contact.ID,
		Name:      contact.Name,
		Phone:     contact.PhoneNumber,
		Email:     contact.Email,
	}
	result := notifier.Send(models.ActionSMS, target, "这是一条测试通知，用于确认您能收到安全签到的告警消息。")
	if !result.Success {
		response.FailWithMessage(c.Context, code.ErrDispatchFailed, "测试通知发送失败", result.Error)
		return
	}
	response.Success(c.Context, result)
}

// pathID 解析路径中的联系人ID
func (c *ContactController) pathID() (uint, error) {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的联系人ID")
		return 0, err
	}
	return uint(id), nil
}

// failContactError 将服务层错误映射到统一错误码
func (c *ContactController) failContactError(err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.FailWithMessage(c.Context, code.ErrValidation, "联系人信息校验失败", validationErr.Problems)
	case errors.Is(err, services.ErrNotFound):
		response.Fail(c.Context, code.ErrContactNotFound, nil)
	case errors.Is(err, services.ErrAlreadyExists):
		response.Fail(c.Context, code.ErrContactAlreadyExist, nil)
	default:
		response.Fail(c.Context, code.ErrDatabase, nil)
	}
}
