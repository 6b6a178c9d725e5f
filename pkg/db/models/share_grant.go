package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShareGrant gives a recipient read access to a device it does not own.
type ShareGrant struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeviceID    uuid.UUID `gorm:"column:device_id;type:uuid;not null;uniqueIndex:ux_share_grants_device_recipient,priority:1"`
	RecipientID uuid.UUID `gorm:"column:recipient_id;type:uuid;not null;uniqueIndex:ux_share_grants_device_recipient,priority:2;index:idx_share_grants_recipient"`
	SharedAt    time.Time `gorm:"column:shared_at;not null"`
}

func (ShareGrant) TableName() string { return "share_grants" }

func (g *ShareGrant) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
