package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sensorgrid/devicehub-backend/pkg/db/dbtest"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
	"github.com/sensorgrid/devicehub-backend/pkg/visibility"
)

type stubResolver struct {
	device  *models.Device
	visible map[uuid.UUID]bool
}

func (s stubResolver) Visible(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID) (*models.Device, error) {
	if s.device == nil || s.device.ID != deviceID {
		return nil, visibility.ErrDeviceHidden
	}
	if actor.Role.IsElevated() || s.visible[actor.ID] {
		return s.device, nil
	}
	return nil, visibility.ErrDeviceHidden
}

func ptr(v float64) *float64 { return &v }

func setup(t *testing.T) (Service, *models.Device, rbac.Actor) {
	t.Helper()
	conn := dbtest.Open(t)
	device := &models.Device{ID: uuid.New(), Code: "1234123412341234", Name: "Pump"}
	viewer := rbac.Actor{ID: uuid.New(), Role: enums.RoleCustomer}
	svc, err := NewService(NewRepository(conn), stubResolver{
		device:  device,
		visible: map[uuid.UUID]bool{viewer.ID: true},
	})
	require.NoError(t, err)
	return svc, device, viewer
}

var admin = rbac.Actor{ID: uuid.New(), Role: enums.RoleAdmin}

func TestRecordAndList(t *testing.T) {
	svc, device, viewer := setup(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		_, err := svc.Record(ctx, admin, device.ID, ReadingInput{
			Pressure1:   ptr(float64(i)),
			Temperature: ptr(20 + float64(i)),
			RecordedAt:  &at,
		})
		require.NoError(t, err)
	}

	got, err := svc.List(ctx, viewer, device.ID, enums.ReadingKindPressure, 2)
	require.NoError(t, err)
	points := got.([]PressurePoint)
	require.Len(t, points, 2)
	require.Equal(t, 2.0, *points[0].Pressure1)
	require.Nil(t, points[0].Pressure2)
	require.True(t, points[0].RecordedAt.After(points[1].RecordedAt))

	got, err = svc.List(ctx, viewer, device.ID, enums.ReadingKindDistance, 0)
	require.NoError(t, err)
	require.Empty(t, got.([]DistancePoint))

	latest, err := svc.Latest(ctx, viewer, device.ID)
	require.NoError(t, err)
	require.Equal(t, 22.0, *latest.Temperature.Temperature)
	require.Equal(t, 2.0, *latest.Pressure.Pressure1)
	require.Nil(t, latest.Distance)
}

func TestRecordValidation(t *testing.T) {
	svc, device, viewer := setup(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, admin, device.ID, ReadingInput{})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.Record(ctx, viewer, device.ID, ReadingInput{Distance: ptr(1)})
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	res, err := svc.Record(ctx, admin, device.ID, ReadingInput{Distance: ptr(1.5), Pressure2: ptr(3)})
	require.NoError(t, err)
	require.Equal(t, []string{"pressure", "distance"}, res.Series)
}

func TestReadsAreGated(t *testing.T) {
	svc, device, _ := setup(t)
	stranger := rbac.Actor{ID: uuid.New(), Role: enums.RoleCustomer}

	_, err := svc.List(context.Background(), stranger, device.ID, enums.ReadingKindTemperature, 10)
	require.ErrorIs(t, err, visibility.ErrDeviceHidden)

	_, err = svc.Latest(context.Background(), stranger, device.ID)
	require.ErrorIs(t, err, visibility.ErrDeviceHidden)

	_, err = svc.List(context.Background(), admin, device.ID, enums.ReadingKind("humidity"), 10)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}
