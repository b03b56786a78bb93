package routes

import (
	"emergencize-checkin-service/config"
	"emergencize-checkin-service/controllers"
	_ "emergencize-checkin-service/docs"
	"emergencize-checkin-service/middleware"
	"emergencize-checkin-service/services/container"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *container.ServiceContainer) {
	// 初始化 Gin
	r := gin.Default()

	// 添加 CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	// 设置正确的Content-Type，确保UTF-8编码
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.Next()
	})
	// 创建服务容器
	serviceContainer := container.NewServiceContainer(db, cfg)
	// 初始化中间件
	middleware.InitAuthMiddleware(cfg)
	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 注册路由
	registerRoutes(r, serviceContainer)
	return r, serviceContainer
}

// registerRoutes 配置所有API路由
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	// API 路由根路径
	api := r.Group("/api")
	// 注册公共路由
	registerPublicRoutes(api, container)
	// 注册需要认证的路由
	registerAuthenticatedRoutes(api, container)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 健康检查
	health := controllers.NewHealthCheckController()
	api.GET("/ping", health.Ping)

	// 认证路由，登录接口做IP限流防止暴力破解
	api.POST("/auth/login", middleware.IPRateLimiter(1, 5), controllers.HandleJWTFunc(container, "login"))
}

// registerAuthenticatedRoutes 注册需要认证的路由
func registerAuthenticatedRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 普通用户可访问的路由
	user := api.Group("/")
	user.Use(middleware.AuthenticateUser())

	// 签到计划路由
	user.Group("/schedules").POST("", controllers.HandleScheduleFunc(container, "create"))
	user.Group("/schedules").GET("/:id", controllers.HandleScheduleFunc(container, "get"))
	user.Group("/schedules").PUT("/:id", controllers.HandleScheduleFunc(container, "update"))
	user.Group("/schedules").DELETE("/:id", controllers.HandleScheduleFunc(container, "delete"))
	user.Group("/schedules").PUT("/:id/active", controllers.HandleScheduleFunc(container, "setActive"))
	user.Group("/schedules").GET("/:id/checkins", controllers.HandleCheckInFunc(container, "listBySchedule"))
	user.Group("/schedules").GET("/:id/escalations", controllers.HandleEscalationFunc(container, "listBySchedule"))

	// 签到路由
	user.Group("/checkins").GET("/:id", controllers.HandleCheckInFunc(container, "get"))
	user.Group("/checkins").POST("/:id/submit", controllers.HandleCheckInFunc(container, "submit"))

	// 升级事件路由
	user.Group("/escalations").GET("/:id", controllers.HandleEscalationFunc(container, "get"))
	user.Group("/escalations").POST("/:id/resolve", controllers.HandleEscalationFunc(container, "resolve"))

	// 用户路由
	user.Group("/users").GET("/:id", controllers.HandleUserFunc(container, "get"))
	user.Group("/users").PUT("/:id", controllers.HandleUserFunc(container, "update"))
	user.Group("/users").PUT("/:id/safety-profile", controllers.HandleUserFunc(container, "updateSafetyProfile"))
	user.Group("/users").GET("/:id/stats", controllers.HandleUserFunc(container, "getStats"))
	user.Group("/users").GET("/:id/schedules", controllers.HandleScheduleFunc(container, "listByUser"))
	user.Group("/users").GET("/:id/checkins", controllers.HandleCheckInFunc(container, "listByUser"))
	user.Group("/users").GET("/:id/escalations", controllers.HandleEscalationFunc(container, "listByUser"))
	user.Group("/users").GET("/:id/contacts", controllers.HandleContactFunc(container, "listByUser"))

	// 紧急联系人路由
	user.Group("/contacts").POST("", controllers.HandleContactFunc(container, "create"))
	user.Group("/contacts").GET("/:id", controllers.HandleContactFunc(container, "get"))
	user.Group("/contacts").PUT("/:id", controllers.HandleContactFunc(container, "update"))
	user.Group("/contacts").DELETE("/:id", controllers.HandleContactFunc(container, "delete"))
	user.Group("/contacts").POST("/:id/test", controllers.HandleContactFunc(container, "testNotify"))

	// 管理员专属路由
	admin := api.Group("/")
	admin.Use(middleware.AuthenticateSystemAdmin())

	// 管理员账号路由
	admin.Group("/admins").GET("", controllers.HandleAdminFunc(container, "getAll"))
	admin.Group("/admins").GET("/:id", controllers.HandleAdminFunc(container, "get"))
	admin.Group("/admins").POST("", controllers.HandleAdminFunc(container, "create"))
	admin.Group("/admins").PUT("/:id", controllers.HandleAdminFunc(container, "update"))
	admin.Group("/admins").DELETE("/:id", controllers.HandleAdminFunc(container, "delete"))

	// 用户管理路由
	admin.Group("/users").GET("", controllers.HandleUserFunc(container, "list"))
	admin.Group("/users").POST("", controllers.HandleUserFunc(container, "create"))
	admin.Group("/users").DELETE("/:id", controllers.HandleUserFunc(container, "delete"))

	// 引擎运维路由
	admin.Group("/monitoring").POST("/start", controllers.HandleEngineFunc(container, "start"))
	admin.Group("/monitoring").POST("/stop", controllers.HandleEngineFunc(container, "stop"))
	admin.Group("/monitoring").GET("/status", controllers.HandleEngineFunc(container, "status"))
}
