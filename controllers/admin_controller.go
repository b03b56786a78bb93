package controllers

import (
	"net/http"
	"strconv"

	"emergencize-checkin-service/models"
	"emergencize-checkin-service/services"
	"emergencize-checkin-service/services/container"

	"github.com/gin-gonic/gin"
)

// AdminController 处理管理员相关的请求
type AdminController struct {
	BaseControllerImpl
}

// NewAdminController 创建一个新的管理员控制器
func (f *ControllerFactory) NewAdminController(ctx *gin.Context) *AdminController {
	return &AdminController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// AdminRequest 表示创建或更新管理员的请求
type AdminRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" example:"admin123"`
	Email    string `json:"email" example:"admin@example.com"`
	Phone    string `json:"phone" example:"13800000000"`
}

// HandleAdminFunc 返回一个处理管理员请求的Gin处理函数
func HandleAdminFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewAdminController(ctx)

		switch method {
		case "getAll":
			controller.GetAllAdmins()
		case "get":
			controller.GetAdmin()
		case "create":
			controller.CreateAdmin()
		case "update":
			controller.UpdateAdmin()
		case "delete":
			controller.DeleteAdmin()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// GetAllAdmins 获取管理员列表
// @Summary      获取管理员列表
// @Tags         Admin
// @Produce      json
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页条数" default(10)
// @Success      200  {object}  map[string]interface{}
// @Router       /admins [get]
func (c *AdminController) GetAllAdmins() {
	var query models.PaginationQuery
	_ = c.Context.ShouldBindQuery(&query)
	query.Normalize(10)

	adminService := c.Container.GetService("admin").(*services.AdminService)
	admins, total, err := adminService.GetAllAdmins(query.Page, query.PageSize)
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "获取管理员列表失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data": gin.H{
			"items":      admins,
			"pagination": models.NewPaginationResult(int(total), query.Page, query.PageSize),
		},
	})
}

// GetAdmin 获取管理员详情
// @Summary      获取管理员详情
// @Tags         Admin
// @Produce      json
// @Param        id path int true "管理员ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /admins/{id} [get]
func (c *AdminController) GetAdmin() {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的管理员ID",
			"data":    nil,
		})
		return
	}

	adminService := c.Container.GetService("admin").(*services.AdminService)
	admin, err := adminService.GetAdminByID(uint(id))
	if err != nil {
		c.Context.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    admin,
	})
}

// CreateAdmin 创建管理员
// @Summary      创建管理员
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body AdminRequest true "管理员信息"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Router       /admins [post]
func (c *AdminController) CreateAdmin() {
	var req AdminRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}
	if req.Password == "" {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "密码不能为空",
			"data":    nil,
		})
		return
	}

	admin := &models.Admin{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Phone:    req.Phone,
	}

	adminService := c.Container.GetService("admin").(*services.AdminService)
	if err := adminService.CreateAdmin(admin); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    admin,
	})
}

// UpdateAdmin 更新管理员
// @Summary      更新管理员
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path int true "管理员ID"
// @Param        request body AdminRequest true "管理员信息"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /admins/{id} [put]
func (c *AdminController) UpdateAdmin() {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的管理员ID",
			"data":    nil,
		})
		return
	}

	var req AdminRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	updates := map[string]interface{}{
		"username": req.Username,
		"email":    req.Email,
		"phone":    req.Phone,
	}
	if req.Password != "" {
		updates["password"] = req.Password
	}

	adminService := c.Container.GetService("admin").(*services.AdminService)
	admin, err := adminService.UpdateAdmin(uint(id), updates)
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    admin,
	})
}

// DeleteAdmin 删除管理员
// @Summary      删除管理员
// @Tags         Admin
// @Produce      json
// @Param        id path int true "管理员ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /admins/{id} [delete]
func (c *AdminController) DeleteAdmin() {
	id, err := strconv.ParseUint(c.Context.Param("id"), 10, 32)
	if err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的管理员ID",
			"data":    nil,
		})
		return
	}

	adminService := c.Container.GetService("admin").(*services.AdminService)
	if err := adminService.DeleteAdmin(uint(id)); err != nil {
		c.Context.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    gin.H{"id": id},
	})
}
