package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPSession stores a hashed one-time login code. A session is usable while
// ConsumedAt is nil and ExpiresAt is in the future.
type OTPSession struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID     *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	Phone      string     `gorm:"column:phone;not null;index:idx_otp_sessions_phone_open,priority:1"`
	CodeHash   string     `gorm:"column:code_hash;not null"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null"`
	ConsumedAt *time.Time `gorm:"column:consumed_at;index:idx_otp_sessions_phone_open,priority:2"`
	VerifiedAt *time.Time `gorm:"column:verified_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (OTPSession) TableName() string { return "otp_sessions" }

func (s *OTPSession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
