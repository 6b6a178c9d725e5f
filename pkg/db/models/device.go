package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Device is a provisioned sensor unit. OwnerID is nil until the device is
// claimed or assigned by an administrator.
type Device struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code        string     `gorm:"column:code;not null;uniqueIndex:ux_devices_code"`
	Name        string     `gorm:"column:name;not null"`
	OwnerID     *uuid.UUID `gorm:"column:owner_id;type:uuid;index:idx_devices_owner_allocated,priority:1"`
	M2MNumber   *string    `gorm:"column:m2m_number"`
	IsActive    bool       `gorm:"column:is_active;not null"`
	AllocatedAt *time.Time `gorm:"column:allocated_at;index:idx_devices_owner_allocated,priority:2"`
	QRCode      []byte     `gorm:"column:qr_code"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Device) TableName() string { return "devices" }

func (d *Device) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// IsOwnedBy reports whether userID is the current owner.
func (d *Device) IsOwnedBy(userID uuid.UUID) bool {
	return d != nil && d.OwnerID != nil && *d.OwnerID == userID
}
