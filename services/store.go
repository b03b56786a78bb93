package services

import (
	"errors"
	"time"

	"emergencize-checkin-service/models"
)

// ErrNotFound 统一的"记录不存在"哨兵错误，各存储实现负责转换
var ErrNotFound = errors.New("记录不存在")

// ErrAlreadyExists 唯一性约束冲突
var ErrAlreadyExists = errors.New("记录已存在")

// InterfaceScheduleStore 签到计划存储
type InterfaceScheduleStore interface {
	GetSchedule(id uint) (*models.CheckInSchedule, error)
	PutSchedule(schedule *models.CheckInSchedule) error
	DeleteSchedule(id uint) error
	ListSchedulesByUser(userID uint) ([]models.CheckInSchedule, error)
	ListActiveSchedules() ([]models.CheckInSchedule, error)
}

// InterfaceCheckInStore 签到实例存储
type InterfaceCheckInStore interface {
	GetCheckIn(id uint) (*models.CheckIn, error)
	PutCheckIn(checkIn *models.CheckIn) error
	ListCheckInsByUser(userID uint, page, pageSize int) ([]models.CheckIn, int64, error)
	ListCheckInsBySchedule(scheduleID uint, page, pageSize int) ([]models.CheckIn, int64, error)
	ListAllCheckInsByUser(userID uint) ([]models.CheckIn, error)
	// FindPendingBySchedule 返回计划当前的pending签到，没有则返回ErrNotFound
	FindPendingBySchedule(scheduleID uint) (*models.CheckIn, error)
	// ListPendingDue 返回截止时间早于before且仍为pending的签到（巡检用）
	ListPendingDue(before time.Time) ([]models.CheckIn, error)
	// PruneHistory 仅保留计划最近keep条已解决的签到历史
	PruneHistory(scheduleID uint, keep int) error
}

// InterfaceEscalationStore 升级事件存储
type InterfaceEscalationStore interface {
	GetEscalation(id uint) (*models.EscalationEvent, error)
	PutEscalation(event *models.EscalationEvent) error
	ListEscalationsByUser(userID uint) ([]models.EscalationEvent, error)
	ListEscalationsBySchedule(scheduleID uint) ([]models.EscalationEvent, error)
	// FindActiveByCheckIn 返回签到当前的active升级事件，没有则返回ErrNotFound
	FindActiveByCheckIn(checkInID uint) (*models.EscalationEvent, error)
}

// InterfaceUserStore 用户存储
type InterfaceUserStore interface {
	GetUser(id uint) (*models.AppUser, error)
	// FindUserByPhone 按手机号查找用户，没有则返回ErrNotFound
	FindUserByPhone(phone string) (*models.AppUser, error)
	PutUser(user *models.AppUser) error
	DeleteUser(id uint) error
	ListUsers(page, pageSize int) ([]models.AppUser, int64, error)
}

// InterfaceContactStore 紧急联系人存储
type InterfaceContactStore interface {
	GetContact(id uint) (*models.EmergencyContact, error)
	PutContact(contact *models.EmergencyContact) error
	DeleteContact(id uint) error
	ListContactsByUser(userID uint) ([]models.EmergencyContact, error)
}
