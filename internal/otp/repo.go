package otp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
)

// Stats summarizes sessions created since a point in time.
type Stats struct {
	Total    int64 `json:"total_sessions"`
	Verified int64 `json:"verified_sessions"`
	Active   int64 `json:"active_sessions"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Replace closes every open session for the phone and stores session, in one transaction.
func (r *Repository) Replace(ctx context.Context, session *models.OTPSession, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OTPSession{}).
			Where("phone = ? AND consumed_at IS NULL", session.Phone).
			UpdateColumn("consumed_at", at).Error; err != nil {
			return err
		}
		return tx.Create(session).Error
	})
}

// LatestOpen returns the newest unconsumed, unexpired session for phone.
func (r *Repository) LatestOpen(ctx context.Context, phone string, now time.Time) (*models.OTPSession, error) {
	var session models.OTPSession
	err := r.db.WithContext(ctx).
		Where("phone = ? AND consumed_at IS NULL AND expires_at > ?", phone, now).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Consume marks a session verified. It reports false when another request
// consumed it first.
func (r *Repository) Consume(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OTPSession{}).
		Where("id = ? AND consumed_at IS NULL", id).
		UpdateColumns(map[string]any{"consumed_at": at, "verified_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OTPSession{}).
		Where("consumed_at IS NULL AND expires_at <= ?", now).
		UpdateColumn("consumed_at", now)
	return result.RowsAffected, result.Error
}

func (r *Repository) PurgeConsumedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("consumed_at IS NOT NULL AND consumed_at < ?", cutoff).
		Delete(&models.OTPSession{})
	return result.RowsAffected, result.Error
}

func (r *Repository) Stats(ctx context.Context, since, now time.Time) (Stats, error) {
	var stats Stats
	base := r.db.WithContext(ctx).Model(&models.OTPSession{}).Where("created_at >= ?", since).Session(&gorm.Session{})
	if err := base.Count(&stats.Total).Error; err != nil {
		return Stats{}, err
	}
	if err := base.Where("verified_at IS NOT NULL").Count(&stats.Verified).Error; err != nil {
		return Stats{}, err
	}
	if err := r.db.WithContext(ctx).Model(&models.OTPSession{}).
		Where("created_at >= ? AND consumed_at IS NULL AND expires_at > ?", since, now).
		Count(&stats.Active).Error; err != nil {
		return Stats{}, err
	}
	return stats, nil
}
