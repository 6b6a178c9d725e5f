package telemetry

import (
	"time"

	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
)

type PressurePoint struct {
	Pressure1  *float64  `json:"pressure1"`
	Pressure2  *float64  `json:"pressure2"`
	RecordedAt time.Time `json:"recorded_at"`
}

type TemperaturePoint struct {
	Temperature *float64  `json:"temperature"`
	RecordedAt  time.Time `json:"recorded_at"`
}

type DistancePoint struct {
	Distance   *float64  `json:"distance"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Latest holds the newest reading of each series. A series with no rows is nil.
type Latest struct {
	Pressure    *PressurePoint    `json:"pressure"`
	Temperature *TemperaturePoint `json:"temperature"`
	Distance    *DistancePoint    `json:"distance"`
}

// ReadingInput is one ingestion sample. Every non-nil field lands in its series.
type ReadingInput struct {
	Pressure1   *float64
	Pressure2   *float64
	Temperature *float64
	Distance    *float64
	RecordedAt  *time.Time
}

// RecordResult reports which series received a row.
type RecordResult struct {
	Series     []string  `json:"series"`
	RecordedAt time.Time `json:"recorded_at"`
}

func pressurePoints(rows []models.PressureReading) []PressurePoint {
	out := make([]PressurePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, PressurePoint{Pressure1: r.Pressure1, Pressure2: r.Pressure2, RecordedAt: r.RecordedAt})
	}
	return out
}

func temperaturePoints(rows []models.TemperatureReading) []TemperaturePoint {
	out := make([]TemperaturePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, TemperaturePoint{Temperature: r.Temperature, RecordedAt: r.RecordedAt})
	}
	return out
}

func distancePoints(rows []models.DistanceReading) []DistancePoint {
	out := make([]DistancePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, DistancePoint{Distance: r.Distance, RecordedAt: r.RecordedAt})
	}
	return out
}
