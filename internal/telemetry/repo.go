package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
)

// Repository reads and appends telemetry rows. Rows are never updated.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts every row in one transaction.
func (r *Repository) Append(ctx context.Context, rows ...any) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) Pressure(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.PressureReading, error) {
	return newest[models.PressureReading](ctx, r.db, deviceID, limit)
}

func (r *Repository) Temperature(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.TemperatureReading, error) {
	return newest[models.TemperatureReading](ctx, r.db, deviceID, limit)
}

func (r *Repository) Distance(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.DistanceReading, error) {
	return newest[models.DistanceReading](ctx, r.db, deviceID, limit)
}

func newest[T any](ctx context.Context, db *gorm.DB, deviceID uuid.UUID, limit int) ([]T, error) {
	var rows []T
	err := db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("recorded_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
