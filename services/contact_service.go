package services

import (
	"emergencize-checkin-service/models"
)

// InterfaceContactService defines the emergency contact management interface
type InterfaceContactService interface {
	CreateContact(contact *models.EmergencyContact) error
	UpdateContact(contact *models.EmergencyContact) error
	GetContact(id uint) (*models.EmergencyContact, error)
	DeleteContact(id uint) error
	ListContactsByUser(userID uint) ([]models.EmergencyContact, error)
}

// ContactService 管理用户的紧急联系人
type ContactService struct {
	Contacts InterfaceContactStore
	Users    InterfaceUserStore
}

// NewContactService 创建联系人服务
func NewContactService(contacts InterfaceContactStore, users InterfaceUserStore) InterfaceContactService {
	return &ContactService{Contacts: contacts, Users: users}
}

// CreateContact 创建联系人，归属用户必须存在，同一用户下手机号不可重复
func (s *ContactService) CreateContact(contact *models.EmergencyContact) error {
	if contact.Name == "" || contact.PhoneNumber == "" {
		return &ValidationError{Problems: []string{"name/phone_number: 姓名和手机号不能为空"}}
	}
	if _, err := s.Users.GetUser(contact.UserID); err != nil {
		return err
	}
	existing, err := s.Contacts.ListContactsByUser(contact.UserID)
	if err != nil {
		return err
	}
	for _, c := range existing {
		if c.PhoneNumber == contact.PhoneNumber {
			return ErrAlreadyExists
		}
	}
	return s.Contacts.PutContact(contact)
}

// UpdateContact 更新联系人
func (s *ContactService) UpdateContact(contact *models.EmergencyContact) error {
	if _, err := s.Contacts.GetContact(contact.ID); err != nil {
		return err
	}
	return s.Contacts.PutContact(contact)
}

// GetContact 根据ID获取联系人
func (s *ContactService) GetContact(id uint) (*models.EmergencyContact, error) {
	return s.Contacts.GetContact(id)
}

// DeleteContact 删除联系人
func (s *ContactService) DeleteContact(id uint) error {
	if _, err := s.Contacts.GetContact(id); err != nil {
		return err
	}
	return s.Contacts.DeleteContact(id)
}

// ListContactsByUser 获取用户的联系人列表
func (s *ContactService) ListContactsByUser(userID uint) ([]models.EmergencyContact, error) {
	return s.Contacts.ListContactsByUser(userID)
}
