package models

import (
	"gorm.io/gorm"
)

// AppUser represents monitored end users
type AppUser struct {
	BaseModel
	Name      string `gorm:"type:varchar(50);not null" json:"name"`
	Email     string `gorm:"type:varchar(100)" json:"email"`
	Phone     string `gorm:"type:varchar(20);not null" json:"phone"`
	Password  string `gorm:"type:varchar(100);not null" json:"-"` // 不在JSON中暴露密码
	PushToken string `gorm:"type:varchar(255)" json:"-"`          // 移动端推送令牌

	// 安全档案：校验打分所需的参照信号
	SafeWord    string   `gorm:"type:varchar(100)" json:"-"` // 预先约定的安全词
	ExpectedLat *float64 `json:"expected_lat,omitempty"`     // 期望签到位置
	ExpectedLng *float64 `json:"expected_lng,omitempty"`
	Timezone    string   `gorm:"type:varchar(64);default:'UTC'" json:"timezone"`

	// Relations
	Contacts  []EmergencyContact `gorm:"foreignKey:UserID" json:"contacts,omitempty"`
	Schedules []CheckInSchedule  `gorm:"foreignKey:UserID" json:"schedules,omitempty"`
}

// TableName 指定表名
func (AppUser) TableName() string {
	return "app_users"
}

// BeforeCreate 是一个GORM钩子，在创建新记录前运行
func (u *AppUser) BeforeCreate(tx *gorm.DB) error {
	// 如果提供了密码，对其进行哈希处理
	if u.Password != "" {
		hashedPassword, err := HashPassword(u.Password)
		if err != nil {
			return err
		}
		u.Password = hashedPassword
	}
	return nil
}

// BeforeSave 是一个GORM钩子，在保存记录前运行
func (u *AppUser) BeforeSave(tx *gorm.DB) error {
	// 如果提供了密码且不是已哈希的，对其进行哈希处理
	if u.Password != "" && len(u.Password) < 60 {
		hashedPassword, err := HashPassword(u.Password)
		if err != nil {
			return err
		}
		u.Password = hashedPassword
	}
	return nil
}

// ExpectedLocation 返回期望位置，未配置时返回nil
func (u *AppUser) ExpectedLocation() *GeoPoint {
	if u.ExpectedLat == nil || u.ExpectedLng == nil {
		return nil
	}
	return &GeoPoint{Lat: *u.ExpectedLat, Lng: *u.ExpectedLng}
}
