package loginlogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
)

// Entry is a login joined with the account that logged in.
type Entry struct {
	ID         uuid.UUID `gorm:"column:id" json:"id"`
	UserID     uuid.UUID `gorm:"column:user_id" json:"user_id"`
	UserName   string    `gorm:"column:user_name" json:"admin_name"`
	UserPhone  string    `gorm:"column:user_phone" json:"admin_phone"`
	IPAddress  string    `gorm:"column:ip_address" json:"ip_address"`
	UserAgent  string    `gorm:"column:user_agent" json:"user_agent"`
	LoggedInAt time.Time `gorm:"column:logged_in_at" json:"login_time"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, log *models.LoginLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *Repository) List(ctx context.Context, limit int) ([]Entry, error) {
	var rows []Entry
	err := r.db.WithContext(ctx).
		Table("login_logs AS l").
		Select("l.id, l.user_id, u.name AS user_name, u.phone AS user_phone, l.ip_address, l.user_agent, l.logged_in_at").
		Joins("JOIN users u ON u.id = l.user_id").
		Order("l.logged_in_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LoginLog{}).
		Where("logged_in_at >= ?", since).
		Count(&count).Error
	return count, err
}
