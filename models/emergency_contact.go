package models

// EmergencyContact 表示某个用户的紧急联系人信息
type EmergencyContact struct {
	BaseModel
	UserID      uint   `gorm:"index;not null" json:"user_id"`
	Name        string `gorm:"type:varchar(50);not null" json:"name"`
	PhoneNumber string `gorm:"type:varchar(20);not null" json:"phone_number"`
	Email       string `gorm:"type:varchar(100)" json:"email,omitempty"`
	Relation    string `gorm:"type:varchar(30)" json:"relation"` // 如：家人、朋友、邻居、护理人员等
	Priority    int    `gorm:"default:0" json:"priority"`        // 联系优先级，数字越大优先级越高

	// 允许的通知方式
	NotifyBySMS   bool `gorm:"default:true" json:"notify_by_sms"`
	NotifyByCall  bool `gorm:"default:true" json:"notify_by_call"`
	NotifyByEmail bool `gorm:"default:false" json:"notify_by_email"`

	Remark string `gorm:"type:text" json:"remark,omitempty"`
}

// TableName 指定表名
func (EmergencyContact) TableName() string {
	return "emergency_contacts"
}
