package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/pagination"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

type readingsRepository interface {
	Append(ctx context.Context, rows ...any) error
	Pressure(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.PressureReading, error)
	Temperature(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.TemperatureReading, error)
	Distance(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.DistanceReading, error)
}

// deviceResolver loads a device the actor is allowed to read.
type deviceResolver interface {
	Visible(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID) (*models.Device, error)
}

// Service exposes telemetry reads and admin ingestion.
type Service interface {
	Record(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID, input ReadingInput) (*RecordResult, error)
	// List returns []PressurePoint, []TemperaturePoint or []DistancePoint
	// depending on kind, newest first.
	List(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID, kind enums.ReadingKind, limit int) (any, error)
	Latest(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID) (*Latest, error)
}

type service struct {
	repo    readingsRepository
	devices deviceResolver
	now     func() time.Time
}

func NewService(repo readingsRepository, devices deviceResolver) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "telemetry repository required")
	}
	if devices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "device resolver required")
	}
	return &service{
		repo:    repo,
		devices: devices,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Record(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID, input ReadingInput) (*RecordResult, error) {
	if !actor.Role.IsElevated() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin or superadmin privileges required")
	}
	device, err := s.devices.Visible(ctx, actor, deviceID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if input.RecordedAt != nil && !input.RecordedAt.IsZero() {
		at = input.RecordedAt.UTC()
	}

	var (
		rows   []any
		series []string
	)
	if input.Pressure1 != nil || input.Pressure2 != nil {
		rows = append(rows, &models.PressureReading{DeviceID: device.ID, Pressure1: input.Pressure1, Pressure2: input.Pressure2, RecordedAt: at})
		series = append(series, enums.ReadingKindPressure.String())
	}
	if input.Temperature != nil {
		rows = append(rows, &models.TemperatureReading{DeviceID: device.ID, Temperature: input.Temperature, RecordedAt: at})
		series = append(series, enums.ReadingKindTemperature.String())
	}
	if input.Distance != nil {
		rows = append(rows, &models.DistanceReading{DeviceID: device.ID, Distance: input.Distance, RecordedAt: at})
		series = append(series, enums.ReadingKindDistance.String())
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one reading value is required")
	}

	if err := s.repo.Append(ctx, rows...); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record readings")
	}
	return &RecordResult{Series: series, RecordedAt: at}, nil
}

func (s *service) List(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID, kind enums.ReadingKind, limit int) (any, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown reading kind")
	}
	if _, err := s.devices.Visible(ctx, actor, deviceID); err != nil {
		return nil, err
	}
	limit = pagination.NormalizeLimit(limit)

	switch kind {
	case enums.ReadingKindPressure:
		rows, err := s.repo.Pressure(ctx, deviceID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pressure readings")
		}
		return pressurePoints(rows), nil
	case enums.ReadingKindTemperature:
		rows, err := s.repo.Temperature(ctx, deviceID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list temperature readings")
		}
		return temperaturePoints(rows), nil
	case enums.ReadingKindDistance:
		rows, err := s.repo.Distance(ctx, deviceID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list distance readings")
		}
		return distancePoints(rows), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown reading kind")
	}
}

func (s *service) Latest(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID) (*Latest, error) {
	if _, err := s.devices.Visible(ctx, actor, deviceID); err != nil {
		return nil, err
	}

	var latest Latest
	pressure, err := s.repo.Pressure(ctx, deviceID, 1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "latest pressure reading")
	}
	if points := pressurePoints(pressure); len(points) > 0 {
		latest.Pressure = &points[0]
	}

	temperature, err := s.repo.Temperature(ctx, deviceID, 1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "latest temperature reading")
	}
	if points := temperaturePoints(temperature); len(points) > 0 {
		latest.Temperature = &points[0]
	}

	distance, err := s.repo.Distance(ctx, deviceID, 1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "latest distance reading")
	}
	if points := distancePoints(distance); len(points) > 0 {
		latest.Distance = &points[0]
	}
	return &latest, nil
}
