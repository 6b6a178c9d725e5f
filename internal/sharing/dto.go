package sharing

import (
	"time"

	"github.com/google/uuid"
)

// SentRow is a grant the owner handed out.
type SentRow struct {
	DeviceID      uuid.UUID `gorm:"column:device_id" json:"device_id"`
	DeviceName    string    `gorm:"column:device_name" json:"device_name"`
	DeviceCode    string    `gorm:"column:device_code" json:"device_code"`
	RecipientID   uuid.UUID `gorm:"column:recipient_id" json:"user_id"`
	RecipientName string    `gorm:"column:recipient_name" json:"username"`
	SharedAt      time.Time `gorm:"column:shared_at" json:"shared_at"`
}

// ReceivedRow is a grant the caller holds on someone else's device.
type ReceivedRow struct {
	DeviceID   uuid.UUID `gorm:"column:device_id" json:"id"`
	DeviceName string    `gorm:"column:device_name" json:"device_name"`
	DeviceCode string    `gorm:"column:device_code" json:"device_code"`
	OwnerID    uuid.UUID `gorm:"column:owner_id" json:"owner_id"`
	OwnerName  string    `gorm:"column:owner_name" json:"owner"`
	SharedAt   time.Time `gorm:"column:shared_at" json:"shared_at"`
}

// ShareResult describes a freshly created grant.
type ShareResult struct {
	DeviceID      uuid.UUID `json:"device_id"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	RecipientName string    `json:"recipient_name"`
	SharedAt      time.Time `json:"shared_at"`
}
