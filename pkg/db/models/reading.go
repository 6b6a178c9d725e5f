package models

import (
	"time"

	"github.com/google/uuid"
)

// Readings are append-only; nothing updates them after insert.

type PressureReading struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID   uuid.UUID `gorm:"column:device_id;type:uuid;not null;index:idx_pressure_device_recorded,priority:1"`
	Pressure1  *float64  `gorm:"column:pressure1"`
	Pressure2  *float64  `gorm:"column:pressure2"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null;index:idx_pressure_device_recorded,priority:2"`
}

func (PressureReading) TableName() string { return "pressure_readings" }

type TemperatureReading struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID    uuid.UUID `gorm:"column:device_id;type:uuid;not null;index:idx_temperature_device_recorded,priority:1"`
	Temperature *float64  `gorm:"column:temperature"`
	RecordedAt  time.Time `gorm:"column:recorded_at;not null;index:idx_temperature_device_recorded,priority:2"`
}

func (TemperatureReading) TableName() string { return "temperature_readings" }

type DistanceReading struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID   uuid.UUID `gorm:"column:device_id;type:uuid;not null;index:idx_distance_device_recorded,priority:1"`
	Distance   *float64  `gorm:"column:distance"`
	RecordedAt time.Time `gorm:"column:recorded_at;not null;index:idx_distance_device_recorded,priority:2"`
}

func (DistanceReading) TableName() string { return "distance_readings" }
