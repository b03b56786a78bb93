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

// UserController 处理被监护用户相关的请求
type UserController struct {
	BaseControllerImpl
}

// NewUserController 创建一个新的用户控制器
func (f *ControllerFactory) NewUserController(ctx *gin.Context) *UserController {
	return &UserController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// UserRequest 表示创建或更新用户的请求
type UserRequest struct {
	Name      string `json:"name" binding:"required" example:"张明"`
	Email     string `json:"email" example:"zhangming@example.com"`
	Phone     string `json:"phone" binding:"required" example:"13800138000"`
	Password  string `json:"password" example:"secret123"`
	PushToken string `json:"push_token"`
	Timezone  string `json:"timezone" example:"Asia/Shanghai"`
}

// SafetyProfileRequest 表示更新安全档案的请求
type SafetyProfileRequest struct {
	SafeWord    string   `json:"safe_word" example:"蓝色海豚"`
	ExpectedLat *float64 `json:"expected_lat" example:"31.2304"`
	ExpectedLng *float64 `json:"expected_lng" example:"121.4737"`
}

// HandleUserFunc 返回一个处理用户请求的Gin处理函数
func HandleUserFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewUserController(ctx)

		switch method {
		case "create":
			controller.CreateUser()
		case "update":
			controller.UpdateUser()
		case "get":
			controller.GetUser()
		case "delete":
			controller.DeleteUser()
		case "list":
			controller.ListUsers()
		case "updateSafetyProfile":
			controller.UpdateSafetyProfile()
		case "getStats":
			controller.GetUserStats()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// CreateUser 处理创建用户的请求
// @Summary      创建被监护用户
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        request body UserRequest true "用户信息"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Router       /users [post]
func (c *UserController) CreateUser() {
	var req UserRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	user := &models.AppUser{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		PushToken: req.PushToken,
		Timezone:  req.Timezone,
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)
	if err := userService.CreateUser(user); err != nil {
		c.failUserError(err)
		return
	}
	response.Success(c.Context, user)
}

// UpdateUser 处理更新用户的请求
// @Summary      更新被监护用户
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        id path int true "用户ID"
// @Param        request body UserRequest true "用户信息"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /users/{id} [put]
func (c *UserController) UpdateUser() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	var req UserRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)
	user, err := userService.GetUser(id)
	if err != nil {
		c.failUserError(err)
		return
	}

	user.Name = req.Name
	user.Email = req.Email
	user.Phone = req.Phone
	if req.Password != "" {
		user.Password = req.Password
	}
	if req.PushToken != "" {
		user.PushToken = req.PushToken
	}
	if req.Timezone != "" {
		user.Timezone = req.Timezone
	}

	if err := userService.UpdateUser(user); err != nil {
		c.failUserError(err)
		return
	}
	response.Success(c.Context, user)
}

// GetUser 处理获取用户详情的请求
// @Summary      获取用户详情
// @Tags         User
// @Produce      json
// @Param        id path int true "用户ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /users/{id} [get]
func (c *UserController) GetUser() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)
	user, err := userService.GetUser(id)
	if err != nil {
		c.failUserError(err)
		return
	}
	response.Success(c.Context, user)
}

// DeleteUser 处理删除用户的请求
// @Summary      删除用户
// @Tags         User
// @Produce      json
// @Param        id path int true "用户ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /users/{id} [delete]
func (c *UserController) DeleteUser() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)
	if err := userService.DeleteUser(id); err != nil {
		c.failUserError(err)
		return
	}
	response.Success(c.Context, gin.H{"id": id})
}

// ListUsers 处理获取用户列表的请求
// @Summary      获取用户列表
// @Tags         User
// @Produce      json
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页条数" default(20)
// @Success      200  {object}  map[string]interface{}
// @Router       /users [get]
func (c *UserController) ListUsers() {
	var query models.PaginationQuery
	_ = c.Context.ShouldBindQuery(&query)
	query.Normalize(20)

	userService := c.Container.GetService("user").(services.InterfaceUserService)
	users, total, err := userService.ListUsers(query.Page, query.PageSize)
	if err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, gin.H{
		"items":      users,
		"pagination": models.NewPaginationResult(int(total), query.Page, query.PageSize),
	})
}

// UpdateSafetyProfile 处理更新安全档案的请求
// @Summary      更新安全档案
// @Description  更新用户的安全词与期望签到位置，用于签到校验打分
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        id path int true "用户ID"
// @Param        request body SafetyProfileRequest true "安全档案"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /users/{id}/safety-profile [put]
func (c *UserController) UpdateSafetyProfile() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	var req SafetyProfileRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Context, "无效的请求参数: "+err.Error())
		return
	}

	userService := c.Container.GetService("user").(services.InterfaceUserService)
	if err := userService.UpdateSafetyProfile(id, req.SafeWord, req.ExpectedLat, req.ExpectedLng); err != nil {
		c.failUserError(err)
		return
	}
	response.Success(c.Context, gin.H{"id": id})
}

// GetUserStats 处理获取用户签到统计的请求
// @Summary      获取用户签到统计
// @Description  返回签到完成率、连续按时次数、响应延迟等统计数据
// @Tags         User
// @Produce      json
// @Param        id path int true "用户ID"
// @Success      200  {object}  map[string]interface{}
// @Router       /users/{id}/stats [get]
func (c *UserController) GetUserStats() {
	id, err := c.pathID()
	if err != nil {
		return
	}

	stats, err := c.Container.GetEngine().GetUserStats(id)
	if err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, stats)
}

// pathID 解析路径中的用户ID
func (c *UserController) pathID() (uint, error) {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		response.ParamError(c.Context, "无效的用户ID")
		return 0, err
	}
	return uint(id), nil
}

// failUserError 将服务层错误映射到统一错误码
func (c *UserController) failUserError(err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.FailWithMessage(c.Context, code.ErrValidation, "用户信息校验失败", validationErr.Problems)
	case errors.Is(err, services.ErrNotFound):
		response.Fail(c.Context, code.ErrUserNotFound, nil)
	case errors.Is(err, services.ErrAlreadyExists):
		response.Fail(c.Context, code.ErrUserAlreadyExist, nil)
	default:
		response.Fail(c.Context, code.ErrDatabase, nil)
	}
}
