package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoginLog records a successful admin or superadmin login.
type LoginLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	IPAddress  string    `gorm:"column:ip_address"`
	UserAgent  string    `gorm:"column:user_agent"`
	LoggedInAt time.Time `gorm:"column:logged_in_at;not null;index"`
}

func (LoginLog) TableName() string { return "login_logs" }

func (l *LoginLog) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
