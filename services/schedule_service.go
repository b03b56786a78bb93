package services

import (
	"errors"
	"strings"

	"emergencize-checkin-service/models"
)

// ErrRateLimited 用户计划创建超出配额
var ErrRateLimited = errors.New("计划创建超出频率限制")

// ValidationError 计划校验失败，携带字段级错误消息
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "计划校验失败: " + strings.Join(e.Problems, "; ")
}

// InterfaceScheduleService defines the schedule management interface
type InterfaceScheduleService interface {
	CreateSchedule(schedule *models.CheckInSchedule) error
	UpdateSchedule(schedule *models.CheckInSchedule) error
	GetSchedule(id uint) (*models.CheckInSchedule, error)
	DeleteSchedule(id uint) error
	ListSchedulesByUser(userID uint) ([]models.CheckInSchedule, error)
	ListActiveSchedules() ([]models.CheckInSchedule, error)
	SetActive(id uint, active bool) (*models.CheckInSchedule, error)
}

// ScheduleService 管理签到计划的CRUD与校验。
// 签到与定时器的联动由编排层处理，这里只负责计划本体。
type ScheduleService struct {
	Schedules InterfaceScheduleStore
	Limiter   InterfaceRateLimiter
}

// NewScheduleService 创建计划管理服务
func NewScheduleService(schedules InterfaceScheduleStore, limiter InterfaceRateLimiter) InterfaceScheduleService {
	return &ScheduleService{Schedules: schedules, Limiter: limiter}
}

// CreateSchedule 校验并创建计划，受每用户每小时配额限制
func (s *ScheduleService) CreateSchedule(schedule *models.CheckInSchedule) error {
	if problems := schedule.Validate(); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	if s.Limiter != nil && !s.Limiter.Allow(schedule.UserID, "schedule_create") {
		return ErrRateLimited
	}
	return s.Schedules.PutSchedule(schedule)
}

// UpdateSchedule 校验并保存既有计划
func (s *ScheduleService) UpdateSchedule(schedule *models.CheckInSchedule) error {
	if _, err := s.Schedules.GetSchedule(schedule.ID); err != nil {
		return err
	}
	if problems := schedule.Validate(); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return s.Schedules.PutSchedule(schedule)
}

// GetSchedule 根据ID获取计划
func (s *ScheduleService) GetSchedule(id uint) (*models.CheckInSchedule, error) {
	return s.Schedules.GetSchedule(id)
}

// DeleteSchedule 删除计划本体
func (s *ScheduleService) DeleteSchedule(id uint) error {
	if _, err := s.Schedules.GetSchedule(id); err != nil {
		return err
	}
	return s.Schedules.DeleteSchedule(id)
}

// ListSchedulesByUser 获取用户的计划列表
func (s *ScheduleService) ListSchedulesByUser(userID uint) ([]models.CheckInSchedule, error) {
	return s.Schedules.ListSchedulesByUser(userID)
}

// ListActiveSchedules 获取所有激活的计划
func (s *ScheduleService) ListActiveSchedules() ([]models.CheckInSchedule, error) {
	return s.Schedules.ListActiveSchedules()
}

// SetActive 启用或停用计划
func (s *ScheduleService) SetActive(id uint, active bool) (*models.CheckInSchedule, error) {
	schedule, err := s.Schedules.GetSchedule(id)
	if err != nil {
		return nil, err
	}
	schedule.IsActive = active
	if err := s.Schedules.PutSchedule(schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}
