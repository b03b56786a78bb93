package services

import (
	"errors"

	"emergencize-checkin-service/models"
)

// InterfaceGeofencingService 提供校验打分所需的期望位置
type InterfaceGeofencingService interface {
	// CurrentExpectedLocation 返回用户当前的期望签到位置，未配置时返回nil
	CurrentExpectedLocation(userID uint) (*models.GeoPoint, error)
}

// InterfaceSecretService 提供校验打分所需的安全词
type InterfaceSecretService interface {
	// ExpectedSafeWord 返回用户预先约定的安全词，未配置时返回空串
	ExpectedSafeWord(userID uint) (string, error)
}

// InterfaceUserService defines the monitored user management interface
type InterfaceUserService interface {
	InterfaceGeofencingService
	InterfaceSecretService

	CreateUser(user *models.AppUser) error
	UpdateUser(user *models.AppUser) error
	GetUser(id uint) (*models.AppUser, error)
	DeleteUser(id uint) error
	ListUsers(page, pageSize int) ([]models.AppUser, int64, error)
	// UpdateSafetyProfile 更新安全档案（安全词与期望位置）
	UpdateSafetyProfile(userID uint, safeWord string, lat, lng *float64) error
}

// UserService 管理被监护用户及其安全档案
type UserService struct {
	Users InterfaceUserStore
}

// NewUserService 创建用户服务
func NewUserService(users InterfaceUserStore) InterfaceUserService {
	return &UserService{Users: users}
}

// CreateUser 创建用户，手机号作为登录名必须唯一
func (s *UserService) CreateUser(user *models.AppUser) error {
	if user.Name == "" || user.Phone == "" {
		return &ValidationError{Problems: []string{"name/phone: 姓名和手机号不能为空"}}
	}
	if _, err := s.Users.FindUserByPhone(user.Phone); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.Users.PutUser(user)
}

// UpdateUser 更新用户
func (s *UserService) UpdateUser(user *models.AppUser) error {
	if _, err := s.Users.GetUser(user.ID); err != nil {
		return err
	}
	return s.Users.PutUser(user)
}

// GetUser 根据ID获取用户
func (s *UserService) GetUser(id uint) (*models.AppUser, error) {
	return s.Users.GetUser(id)
}

// DeleteUser 删除用户
func (s *UserService) DeleteUser(id uint) error {
	if _, err := s.Users.GetUser(id); err != nil {
		return err
	}
	return s.Users.DeleteUser(id)
}

// ListUsers 分页获取用户列表
func (s *UserService) ListUsers(page, pageSize int) ([]models.AppUser, int64, error) {
	return s.Users.ListUsers(page, pageSize)
}

// UpdateSafetyProfile 更新安全档案
func (s *UserService) UpdateSafetyProfile(userID uint, safeWord string, lat, lng *float64) error {
	user, err := s.Users.GetUser(userID)
	if err != nil {
		return err
	}
	if safeWord != "" {
		user.SafeWord = safeWord
	}
	if lat != nil && lng != nil {
		user.ExpectedLat = lat
		user.ExpectedLng = lng
	}
	return s.Users.PutUser(user)
}

// CurrentExpectedLocation 从安全档案读取期望位置
func (s *UserService) CurrentExpectedLocation(userID uint) (*models.GeoPoint, error) {
	user, err := s.Users.GetUser(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user.ExpectedLocation(), nil
}

// ExpectedSafeWord 从安全档案读取安全词
func (s *UserService) ExpectedSafeWord(userID uint) (string, error) {
	user, err := s.Users.GetUser(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return user.SafeWord, nil
}
