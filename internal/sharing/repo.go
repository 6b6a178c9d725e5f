package sharing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
)

// Repository persists share grants and resolves the rows they reference.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindDeviceByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	FindDeviceByCode(ctx context.Context, code string) (*models.Device, error)
	FindCustomerByPhone(ctx context.Context, phone string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, grant *models.ShareGrant) error
	Delete(ctx context.Context, deviceID, recipientID uuid.UUID) (bool, error)
	HasGrant(ctx context.Context, deviceID, recipientID uuid.UUID) (bool, error)
	ListSent(ctx context.Context, ownerID uuid.UUID) ([]SentRow, error)
	ListReceived(ctx context.Context, recipientID uuid.UUID) ([]ReceivedRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a sharing repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindDeviceByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).Omit("qr_code").First(&device, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) FindDeviceByCode(ctx context.Context, code string) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).Omit("qr_code").Where("code = ?", code).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) FindCustomerByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("phone = ? AND role = ?", phone, enums.RoleCustomer).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts grant. The unique (device, recipient) index turns a racing
// duplicate into ErrAlreadyShared.
func (r *repository) Create(ctx context.Context, grant *models.ShareGrant) error {
	err := r.db.WithContext(ctx).Create(grant).Error
	if err != nil && db.IsUniqueViolation(err, "ux_share_grants_device_recipient", "share_grants.device_id", "share_grants.recipient_id") {
		return ErrAlreadyShared
	}
	return err
}

func (r *repository) Delete(ctx context.Context, deviceID, recipientID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("device_id = ? AND recipient_id = ?", deviceID, recipientID).
		Delete(&models.ShareGrant{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) HasGrant(ctx context.Context, deviceID, recipientID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ShareGrant{}).
		Where("device_id = ? AND recipient_id = ?", deviceID, recipientID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListSent(ctx context.Context, ownerID uuid.UUID) ([]SentRow, error) {
	var rows []SentRow
	err := r.db.WithContext(ctx).
		Table("share_grants AS s").
		Select("d.id AS device_id, d.name AS device_name, d.code AS device_code, u.id AS recipient_id, u.name AS recipient_name, s.shared_at").
		Joins("JOIN devices d ON d.id = s.device_id").
		Joins("JOIN users u ON u.id = s.recipient_id").
		Where("d.owner_id = ?", ownerID).
		Order("s.shared_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListReceived(ctx context.Context, recipientID uuid.UUID) ([]ReceivedRow, error) {
	var rows []ReceivedRow
	err := r.db.WithContext(ctx).
		Table("share_grants AS s").
		Select("d.id AS device_id, d.name AS device_name, d.code AS device_code, o.id AS owner_id, o.name AS owner_name, s.shared_at").
		Joins("JOIN devices d ON d.id = s.device_id").
		Joins("JOIN users o ON o.id = d.owner_id").
		Where("s.recipient_id = ?", recipientID).
		Order("s.shared_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
