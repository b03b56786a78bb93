package services

import (
	"errors"
	"time"

	"emergencize-checkin-service/models"

	"gorm.io/gorm"
)

// GormStore 基于GORM的存储实现，实现所有实体的存储接口
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore 创建一个新的GORM存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// translateErr 将gorm错误转换为存储层错误
func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ---- 签到计划 ----

// GetSchedule 根据ID获取签到计划
func (s *GormStore) GetSchedule(id uint) (*models.CheckInSchedule, error) {
	var schedule models.CheckInSchedule
	if err := s.DB.First(&schedule, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &schedule, nil
}

// PutSchedule 保存签到计划（新建或覆盖）
func (s *GormStore) PutSchedule(schedule *models.CheckInSchedule) error {
	return s.DB.Save(schedule).Error
}

// DeleteSchedule 删除签到计划
func (s *GormStore) DeleteSchedule(id uint) error {
	result := s.DB.Delete(&models.CheckInSchedule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSchedulesByUser 获取用户的所有签到计划
func (s *GormStore) ListSchedulesByUser(userID uint) ([]models.CheckInSchedule, error) {
	var schedules []models.CheckInSchedule
	if err := s.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// ListActiveSchedules 获取所有激活的签到计划
func (s *GormStore) ListActiveSchedules() ([]models.CheckInSchedule, error) {
	var schedules []models.CheckInSchedule
	if err := s.DB.Where("is_active = ?", true).Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// ---- 签到实例 ----

// GetCheckIn 根据ID获取签到
func (s *GormStore) GetCheckIn(id uint) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	if err := s.DB.First(&checkIn, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &checkIn, nil
}

// PutCheckIn 保存签到
func (s *GormStore) PutCheckIn(checkIn *models.CheckIn) error {
	return s.DB.Save(checkIn).Error
}

// ListCheckInsByUser 分页获取用户的签到历史
func (s *GormStore) ListCheckInsByUser(userID uint, page, pageSize int) ([]models.CheckIn, int64, error) {
	var checkIns []models.CheckIn
	var total int64

	if err := s.DB.Model(&models.CheckIn{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := s.DB.Where("user_id = ?", userID).
		Order("scheduled_time DESC").
		Limit(pageSize).Offset(offset).
		Find(&checkIns).Error; err != nil {
		return nil, 0, err
	}

	return checkIns, total, nil
}

// ListCheckInsBySchedule 分页获取计划的签到历史
func (s *GormStore) ListCheckInsBySchedule(scheduleID uint, page, pageSize int) ([]models.CheckIn, int64, error) {
	var checkIns []models.CheckIn
	var total int64

	if err := s.DB.Model(&models.CheckIn{}).Where("schedule_id = ?", scheduleID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := s.DB.Where("schedule_id = ?", scheduleID).
		Order("scheduled_time DESC").
		Limit(pageSize).Offset(offset).
		Find(&checkIns).Error; err != nil {
		return nil, 0, err
	}

	return checkIns, total, nil
}

// ListAllCheckInsByUser 获取用户的全部签到历史（统计用）
func (s *GormStore) ListAllCheckInsByUser(userID uint) ([]models.CheckIn, error) {
	var checkIns []models.CheckIn
	if err := s.DB.Where("user_id = ?", userID).Order("scheduled_time ASC").Find(&checkIns).Error; err != nil {
		return nil, err
	}
	return checkIns, nil
}

// FindPendingBySchedule 获取计划当前的pending签到
func (s *GormStore) FindPendingBySchedule(scheduleID uint) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	err := s.DB.Where("schedule_id = ? AND status = ?", scheduleID, models.CheckInStatusPending).
		Order("scheduled_time ASC").
		First(&checkIn).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &checkIn, nil
}

// ListPendingDue 获取计划时间早于before且仍为pending的签到
func (s *GormStore) ListPendingDue(before time.Time) ([]models.CheckIn, error) {
	var checkIns []models.CheckIn
	if err := s.DB.Where("status = ? AND scheduled_time < ?", models.CheckInStatusPending, before).
		Find(&checkIns).Error; err != nil {
		return nil, err
	}
	return checkIns, nil
}

// PruneHistory 仅保留计划最近keep条已解决的签到
func (s *GormStore) PruneHistory(scheduleID uint, keep int) error {
	var ids []uint
	err := s.DB.Model(&models.CheckIn{}).
		Where("schedule_id = ? AND status <> ?", scheduleID, models.CheckInStatusPending).
		Order("scheduled_time DESC").
		Offset(keep).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.DB.Delete(&models.CheckIn{}, ids).Error
}

// ---- 升级事件 ----

// GetEscalation 根据ID获取升级事件
func (s *GormStore) GetEscalation(id uint) (*models.EscalationEvent, error) {
	var event models.EscalationEvent
	if err := s.DB.First(&event, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &event, nil
}

// PutEscalation 保存升级事件
func (s *GormStore) PutEscalation(event *models.EscalationEvent) error {
	return s.DB.Save(event).Error
}

// ListEscalationsByUser 获取用户的升级事件
func (s *GormStore) ListEscalationsByUser(userID uint) ([]models.EscalationEvent, error) {
	var events []models.EscalationEvent
	if err := s.DB.Where("user_id = ?", userID).Order("triggered_at DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListEscalationsBySchedule 获取计划的升级事件
func (s *GormStore) ListEscalationsBySchedule(scheduleID uint) ([]models.EscalationEvent, error) {
	var events []models.EscalationEvent
	if err := s.DB.Where("schedule_id = ?", scheduleID).Order("triggered_at DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FindActiveByCheckIn 获取签到当前的active升级事件
func (s *GormStore) FindActiveByCheckIn(checkInID uint) (*models.EscalationEvent, error) {
	var event models.EscalationEvent
	err := s.DB.Where("check_in_id = ? AND status = ?", checkInID, models.EscalationStatusActive).
		First(&event).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &event, nil
}

// ---- 用户 ----

// GetUser 根据ID获取用户
func (s *GormStore) GetUser(id uint) (*models.AppUser, error) {
	var user models.AppUser
	if err := s.DB.First(&user, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

// FindUserByPhone 按手机号查找用户
func (s *GormStore) FindUserByPhone(phone string) (*models.AppUser, error) {
	var user models.AppUser
	if err := s.DB.Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

// PutUser 保存用户
func (s *GormStore) PutUser(user *models.AppUser) error {
	return s.DB.Save(user).Error
}

// DeleteUser 删除用户
func (s *GormStore) DeleteUser(id uint) error {
	result := s.DB.Delete(&models.AppUser{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers 分页获取用户
func (s *GormStore) ListUsers(page, pageSize int) ([]models.AppUser, int64, error) {
	var users []models.AppUser
	var total int64

	if err := s.DB.Model(&models.AppUser{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := s.DB.Limit(pageSize).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// ---- 紧急联系人 ----

// GetContact 根据ID获取紧急联系人
func (s *GormStore) GetContact(id uint) (*models.EmergencyContact, error) {
	var contact models.EmergencyContact
	if err := s.DB.First(&contact, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &contact, nil
}

// PutContact 保存紧急联系人
func (s *GormStore) PutContact(contact *models.EmergencyContact) error {
	return s.DB.Save(contact).Error
}

// DeleteContact 删除紧急联系人
func (s *GormStore) DeleteContact(id uint) error {
	result := s.DB.Delete(&models.EmergencyContact{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListContactsByUser 获取用户的紧急联系人，按优先级排序
func (s *GormStore) ListContactsByUser(userID uint) ([]models.EmergencyContact, error) {
	var contacts []models.EmergencyContact
	if err := s.DB.Where("user_id = ?", userID).Order("priority DESC").Find(&contacts).Error; err != nil {
		return nil, err
	}
	return contacts, nil
}
