package controllers

import (
	"net/http"

	"emergencize-checkin-service/internal/error/code"
	"emergencize-checkin-service/internal/error/response"
	"emergencize-checkin-service/services/container"

	"github.com/gin-gonic/gin"
)

// EngineController 处理调度引擎的运维请求
type EngineController struct {
	BaseControllerImpl
}

// NewEngineController 创建一个新的引擎控制器
func (f *ControllerFactory) NewEngineController(ctx *gin.Context) *EngineController {
	return &EngineController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// HandleEngineFunc 返回一个处理引擎运维请求的Gin处理函数
func HandleEngineFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewEngineController(ctx)

		switch method {
		case "start":
			controller.StartMonitoring()
		case "stop":
			controller.StopMonitoring()
		case "status":
			controller.GetStatus()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// StartMonitoring 启动签到监控
// @Summary      启动签到监控
// @Description  为所有激活计划排班签到并启动安全巡检
// @Tags         Engine
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /monitoring/start [post]
func (c *EngineController) StartMonitoring() {
	engine := c.Container.GetEngine()
	if err := engine.StartMonitoring(); err != nil {
		response.Fail(c.Context, code.ErrDatabase, nil)
		return
	}
	response.Success(c.Context, gin.H{"monitoring": true})
}

// StopMonitoring 停止签到监控
// @Summary      停止签到监控
// @Description  停止巡检并取消所有内存定时器
// @Tags         Engine
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /monitoring/stop [post]
func (c *EngineController) StopMonitoring() {
	c.Container.GetEngine().StopMonitoring()
	response.Success(c.Context, gin.H{"monitoring": false})
}

// GetStatus 获取引擎运行状态
// @Summary      获取引擎运行状态
// @Tags         Engine
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /monitoring/status [get]
func (c *EngineController) GetStatus() {
	engine := c.Container.GetEngine()
	response.Success(c.Context, gin.H{
		"monitoring": engine.IsMonitoring(),
	})
}
