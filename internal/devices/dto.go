package devices

import (
	"time"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
)

// DeviceDTO is the API shape of a device. The QR image is served separately.
type DeviceDTO struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"device_code"`
	Name        string     `json:"device_name"`
	OwnerID     *uuid.UUID `json:"assigned_to"`
	OwnerName   *string    `json:"assigned_user_name,omitempty"`
	M2MNumber   *string    `json:"device_m2m_number"`
	IsActive    bool       `json:"is_active"`
	AllocatedAt *time.Time `json:"allocated_at"`
	HasQRCode   bool       `json:"has_qr_code"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateInput is the admin payload for a single device.
type CreateInput struct {
	Code    string
	Name    string
	OwnerID *uuid.UUID
}

// BulkFailure describes one unit of a bulk run that was skipped.
type BulkFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BulkResult is the outcome of GenerateBulk. Failures never abort the batch.
type BulkResult struct {
	Devices        []DeviceDTO   `json:"devices"`
	Failures       []BulkFailure `json:"failures,omitempty"`
	TotalGenerated int           `json:"total_generated"`
	TotalRequested int           `json:"total_requested"`
}

// Counts summarizes the registry for dashboards.
type Counts struct {
	Total      int64 `json:"total"`
	Assigned   int64 `json:"assigned"`
	Unassigned int64 `json:"unassigned"`
}

// DeviceRow is a device joined with its owner's name.
type DeviceRow struct {
	ID          uuid.UUID  `gorm:"column:id"`
	Code        string     `gorm:"column:code"`
	Name        string     `gorm:"column:name"`
	OwnerID     *uuid.UUID `gorm:"column:owner_id"`
	OwnerName   *string    `gorm:"column:owner_name"`
	M2MNumber   *string    `gorm:"column:m2m_number"`
	IsActive    bool       `gorm:"column:is_active"`
	AllocatedAt *time.Time `gorm:"column:allocated_at"`
	HasQRCode   bool       `gorm:"column:has_qr_code"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func FromModel(d *models.Device) *DeviceDTO {
	if d == nil {
		return nil
	}
	return &DeviceDTO{
		ID:          d.ID,
		Code:        d.Code,
		Name:        d.Name,
		OwnerID:     d.OwnerID,
		M2MNumber:   d.M2MNumber,
		IsActive:    d.IsActive,
		AllocatedAt: d.AllocatedAt,
		HasQRCode:   len(d.QRCode) > 0,
		CreatedAt:   d.CreatedAt,
	}
}

func fromModels(rows []models.Device) []DeviceDTO {
	out := make([]DeviceDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

func fromRows(rows []DeviceRow) []DeviceDTO {
	out := make([]DeviceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, DeviceDTO{
			ID:          row.ID,
			Code:        row.Code,
			Name:        row.Name,
			OwnerID:     row.OwnerID,
			OwnerName:   row.OwnerName,
			M2MNumber:   row.M2MNumber,
			IsActive:    row.IsActive,
			AllocatedAt: row.AllocatedAt,
			HasQRCode:   row.HasQRCode,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out
}
