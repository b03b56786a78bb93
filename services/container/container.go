package container

import (
	"log"
	"sync"

	"emergencize-checkin-service/config"
	"emergencize-checkin-service/services"
	"emergencize-checkin-service/utils"

	"gorm.io/gorm"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config

	// 基础设施
	store      *services.GormStore
	timers     services.InterfaceTimerService
	registry   *services.TimerRegistry
	locks      *services.KeyedMutex
	eventBus   *services.EventBus
	recurrence *services.RecurrenceCalculator
	idGen      utils.IDGenerator

	// 基础服务
	jwtService   *services.JWTService
	redisService *services.RedisService

	// 通知服务
	notificationService services.InterfaceNotificationService

	// 业务服务
	scheduleService     services.InterfaceScheduleService
	checkInService      services.InterfaceCheckInService
	escalationService   services.InterfaceEscalationService
	verificationService services.InterfaceVerificationService
	userService         services.InterfaceUserService
	contactService      services.InterfaceContactService
	adminService        *services.AdminService
	auditService        *services.AuditService
	engineService       *services.EngineService

	mu sync.RWMutex
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(db *gorm.DB, cfg *config.Config) *ServiceContainer {
	if db == nil {
		panic("数据库连接为空")
	}
	if cfg == nil {
		panic("配置为空")
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
	}
	container.initializeServices()
	return container
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 初始化基础设施
	c.store = services.NewGormStore(c.db)
	c.timers = services.NewRealTimerService()
	c.registry = services.NewTimerRegistry(c.timers)
	c.locks = services.NewKeyedMutex()
	c.eventBus = services.NewEventBus()
	c.recurrence = services.NewRecurrenceCalculator()
	c.idGen = utils.UUIDGenerator{}

	// 初始化基础服务
	c.jwtService = services.NewJWTService(c.config)
	c.redisService = services.NewRedisService(c.config)

	// 初始化通知服务并连接MQTT服务器
	c.notificationService = services.NewNotificationService(c.config, c.idGen)
	if err := c.notificationService.Connect(); err != nil {
		log.Printf("MQTT服务连接失败: %v", err)
	}

	// 初始化业务服务
	c.verificationService = services.NewVerificationService(services.DefaultScoringPolicy)
	c.userService = services.NewUserService(c.store)
	c.contactService = services.NewContactService(c.store, c.store)
	c.adminService = services.NewAdminService(c.db, c.config)
	c.scheduleService = services.NewScheduleService(c.store, c.redisService)
	c.checkInService = services.NewCheckInService(
		c.store, c.store, c.verificationService, c.userService, c.userService, c.timers, c.locks)
	c.escalationService = services.NewEscalationService(
		c.store, c.store, c.store, c.store,
		c.notificationService, c.registry, c.timers, c.eventBus, c.idGen, c.locks)

	// 初始化编排引擎
	c.engineService = services.NewEngineService(
		c.config, c.scheduleService, c.checkInService, c.escalationService,
		c.store, c.store, c.recurrence, c.notificationService,
		c.registry, c.timers, c.eventBus, c.idGen, c.redisService)

	// 关键事件写入审计日志
	c.auditService = services.NewAuditService(c.db, c.timers)
	c.eventBus.Subscribe(c.auditService.Subscriber())
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "redis":
		return c.redisService
	case "notification":
		return c.notificationService
	case "event_bus":
		return c.eventBus
	case "schedule":
		return c.scheduleService
	case "checkin":
		return c.checkInService
	case "escalation":
		return c.escalationService
	case "verification":
		return c.verificationService
	case "user":
		return c.userService
	case "contact":
		return c.contactService
	case "admin":
		return c.adminService
	case "audit":
		return c.auditService
	case "engine":
		return c.engineService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// GetEngine 获取编排引擎
func (c *ServiceContainer) GetEngine() *services.EngineService {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engineService
}
