package devices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
)

// Repository persists devices and the rows that hang off them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, device *models.Device) error
	FindByCode(ctx context.Context, code string) (*models.Device, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Claim(ctx context.Context, params ClaimParams) (bool, error)
	SetOwner(ctx context.Context, deviceID uuid.UUID, ownerID *uuid.UUID, at time.Time) error
	DeleteGrants(ctx context.Context, deviceID uuid.UUID) (int64, error)
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Device, error)
	ListWithOwners(ctx context.Context) ([]DeviceRow, error)
	Delete(ctx context.Context, deviceID uuid.UUID) error
	UpdateM2M(ctx context.Context, code, number string) (bool, error)
	Counts(ctx context.Context) (Counts, error)
}

// ClaimParams drives the one-shot ownership claim.
type ClaimParams struct {
	Code    string
	OwnerID uuid.UUID
	Name    *string
	At      time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a devices repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, device *models.Device) error {
	err := r.db.WithContext(ctx).Create(device).Error
	if err != nil && db.IsUniqueViolation(err, "ux_devices_code", "devices.code") {
		return ErrDuplicateCode
	}
	return err
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).First(&device, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Device{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Claim sets the owner only while the device is unowned. The ownership
// check and the write are one statement, so two racing claims cannot both
// report success.
func (r *repository) Claim(ctx context.Context, params ClaimParams) (bool, error) {
	updates := map[string]any{
		"owner_id":     params.OwnerID,
		"is_active":    true,
		"allocated_at": params.At,
		"updated_at":   params.At,
	}
	if params.Name != nil {
		updates["name"] = *params.Name
	}
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("code = ? AND owner_id IS NULL", params.Code).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetOwner overwrites ownership unconditionally. A nil owner returns the
// device to the unassigned pool; is_active is left as it was.
func (r *repository) SetOwner(ctx context.Context, deviceID uuid.UUID, ownerID *uuid.UUID, at time.Time) error {
	updates := map[string]any{
		"owner_id":     nil,
		"allocated_at": nil,
		"updated_at":   at,
	}
	if ownerID != nil {
		updates["owner_id"] = *ownerID
		updates["is_active"] = true
		updates["allocated_at"] = at
	}
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", deviceID).
		UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) DeleteGrants(ctx context.Context, deviceID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Delete(&models.ShareGrant{})
	return result.RowsAffected, result.Error
}

func (r *repository) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]models.Device, error) {
	var rows []models.Device
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("allocated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListWithOwners(ctx context.Context) ([]DeviceRow, error) {
	var rows []DeviceRow
	err := r.db.WithContext(ctx).
		Table("devices AS d").
		Select(`d.id, d.code, d.name, d.owner_id, u.name AS owner_name, d.m2m_number,
			d.is_active, d.allocated_at, d.qr_code IS NOT NULL AS has_qr_code, d.created_at`).
		Joins("LEFT JOIN users u ON u.id = d.owner_id").
		Order("d.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes the device with its readings and grants. Callers run it
// inside a transaction.
func (r *repository) Delete(ctx context.Context, deviceID uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	children := []any{
		&models.PressureReading{},
		&models.TemperatureReading{},
		&models.DistanceReading{},
		&models.ShareGrant{},
	}
	for _, child := range children {
		if err := conn.Where("device_id = ?", deviceID).Delete(child).Error; err != nil {
			return err
		}
	}
	result := conn.Where("id = ?", deviceID).Delete(&models.Device{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) UpdateM2M(ctx context.Context, code, number string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("code = ?", code).
		Updates(map[string]any{"m2m_number": number})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	conn := r.db.WithContext(ctx).Model(&models.Device{})
	if err := conn.Count(&counts.Total).Error; err != nil {
		return Counts{}, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Device{}).Where("owner_id IS NOT NULL").Count(&counts.Assigned).Error; err != nil {
		return Counts{}, err
	}
	counts.Unassigned = counts.Total - counts.Assigned
	return counts, nil
}
