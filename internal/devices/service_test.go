package devices

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/internal/users"
	"github.com/sensorgrid/devicehub-backend/pkg/db/dbtest"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/qr"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

type grantTable struct {
	db *gorm.DB
}

func (g grantTable) HasGrant(ctx context.Context, deviceID, recipientID uuid.UUID) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.ShareGrant{}).
		Where("device_id = ? AND recipient_id = ?", deviceID, recipientID).
		Count(&count).Error
	return count > 0, err
}

var fakePNG = qr.EncoderFunc(func(payload string) ([]byte, error) {
	return []byte("png:" + payload), nil
})

type fixture struct {
	conn *gorm.DB
	svc  Service
}

func newFixture(t *testing.T, codes CodeSource) fixture {
	t.Helper()
	client := dbtest.Client(t)
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(client.DB()),
		Tx:     client,
		Owners: users.NewRepository(client.DB()),
		Grants: grantTable{db: client.DB()},
		QR:     fakePNG,
		Codes:  codes,
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	return fixture{conn: client.DB(), svc: svc}
}

func (f fixture) user(t *testing.T, role enums.Role, number string) rbac.Actor {
	t.Helper()
	u := &models.User{Name: string(role) + number, Phone: number, Role: role}
	require.NoError(t, f.conn.Create(u).Error)
	return rbac.Actor{ID: u.ID, Role: role}
}

func sequenceCodes(codes ...string) CodeSource {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(codes) {
			return "", errors.New("exhausted")
		}
		code := codes[i]
		i++
		return code, nil
	}
}

var admin = rbac.Actor{ID: uuid.New(), Role: enums.RoleAdmin}

func TestCreateDevice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := f.user(t, enums.RoleCustomer, "9000000001")

	dto, err := f.svc.Create(ctx, admin, CreateInput{Code: "1234567890123456", Name: "Pump", OwnerID: &owner.ID})
	require.NoError(t, err)
	require.True(t, dto.HasQRCode)
	require.True(t, dto.IsActive)
	require.NotNil(t, dto.AllocatedAt)

	_, err = f.svc.Create(ctx, admin, CreateInput{Code: "1234567890123456", Name: "Again"})
	require.ErrorIs(t, err, ErrDuplicateCode)

	missing := uuid.New()
	_, err = f.svc.Create(ctx, admin, CreateInput{Code: "6543210987654321", Name: "Ghost", OwnerID: &missing})
	require.ErrorIs(t, err, ErrUnknownOwner)

	_, err = f.svc.Create(ctx, admin, CreateInput{Code: "12ab", Name: "Bad"})
	require.ErrorIs(t, err, ErrInvalidCode)

	customer := rbac.Actor{ID: owner.ID, Role: enums.RoleCustomer}
	_, err = f.svc.Create(ctx, customer, CreateInput{Code: "1111111111111111", Name: "x"})
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestGenerateBulkSkipsCollisions(t *testing.T) {
	taken := "0000000000000001"
	codes := []string{taken, "0000000000000002"}
	// the third unit only ever sees the taken code and exhausts its budget
	for i := 0; i < codeAttemptLimit; i++ {
		codes = append(codes, taken)
	}
	codes = append(codes, "0000000000000003")

	f := newFixture(t, sequenceCodes(codes...))
	ctx := context.Background()
	require.NoError(t, f.conn.Create(&models.Device{Code: taken, Name: "existing"}).Error)

	result, err := f.svc.GenerateBulk(ctx, admin, 3)
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalRequested)
	require.Equal(t, 2, result.TotalGenerated)
	require.Len(t, result.Failures, 1)
	require.Equal(t, 2, result.Failures[0].Index)
	require.Equal(t, "0000000000000002", result.Devices[0].Code)
	require.Equal(t, "Device 0000000000000003", result.Devices[1].Name)
	require.Nil(t, result.Devices[0].OwnerID)

	var stored models.Device
	require.NoError(t, f.conn.Where("code = ?", "0000000000000003").First(&stored).Error)
	require.Equal(t, []byte("png:0000000000000003"), stored.QRCode)
}

func TestGenerateBulkCountBounds(t *testing.T) {
	f := newFixture(t, nil)
	for _, count := range []int{0, -1, MaxBulkCount + 1} {
		_, err := f.svc.GenerateBulk(context.Background(), admin, count)
		require.ErrorIs(t, err, ErrInvalidCount)
	}
}

func TestGenerateBulkRecordsQRFailure(t *testing.T) {
	client := dbtest.Client(t)
	calls := 0
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(client.DB()),
		Tx:     client,
		Owners: users.NewRepository(client.DB()),
		Grants: grantTable{db: client.DB()},
		QR: qr.EncoderFunc(func(payload string) ([]byte, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("encoder down")
			}
			return []byte("ok"), nil
		}),
		Codes:  sequenceCodes("1000000000000001", "1000000000000002"),
		Logger: logger.Nop(),
	})
	require.NoError(t, err)

	result, err := svc.GenerateBulk(context.Background(), admin, 2)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalGenerated)
	require.Len(t, result.Failures, 1)
	require.Equal(t, 1, result.Failures[0].Index)
	require.Contains(t, result.Failures[0].Reason, "encoder down")
}

func TestClaimDevice(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.conn.Create(&models.Device{Code: "1111222233334444", Name: "Device 1111222233334444"}).Error)

	alice := f.user(t, enums.RoleCustomer, "9000000001")
	bob := f.user(t, enums.RoleCustomer, "9000000002")

	name := "  Garden pump "
	dto, err := f.svc.Claim(ctx, alice, "1111222233334444", &name)
	require.NoError(t, err)
	require.Equal(t, "Garden pump", dto.Name)
	require.Equal(t, alice.ID, *dto.OwnerID)
	require.True(t, dto.IsActive)

	_, err = f.svc.Claim(ctx, bob, "1111222233334444", nil)
	require.ErrorIs(t, err, ErrAlreadyOwned)

	_, err = f.svc.Claim(ctx, bob, "9999999999999999", nil)
	require.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = f.svc.Claim(ctx, bob, "123", nil)
	require.ErrorIs(t, err, ErrInvalidCode)

	owned, err := f.svc.ListOwned(ctx, alice, alice.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	_, err = f.svc.ListOwned(ctx, bob, alice.ID)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestClaimIsAtomicUnderContention(t *testing.T) {
	f := newFixture(t, nil)
	code := "5555000055550000"
	require.NoError(t, f.conn.Create(&models.Device{Code: code, Name: "contended"}).Error)

	const claimers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			actor := rbac.Actor{ID: uuid.New(), Role: enums.RoleCustomer}
			_, err := f.svc.Claim(context.Background(), actor, code, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrAlreadyOwned):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, claimers-1, conflicts)
}

func TestReassignRevokesGrants(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.user(t, enums.RoleCustomer, "9000000001")
	bob := f.user(t, enums.RoleCustomer, "9000000002")
	carol := f.user(t, enums.RoleCustomer, "9000000003")

	_, err := f.svc.Create(ctx, admin, CreateInput{Code: "2222333344445555", Name: "Tank", OwnerID: &alice.ID})
	require.NoError(t, err)
	var device models.Device
	require.NoError(t, f.conn.Where("code = ?", "2222333344445555").First(&device).Error)
	require.NoError(t, f.conn.Create(&models.ShareGrant{DeviceID: device.ID, RecipientID: carol.ID, SharedAt: device.CreatedAt}).Error)

	_, err = f.svc.Get(ctx, carol, device.Code)
	require.NoError(t, err, "grant gives carol access before transfer")

	dto, err := f.svc.Reassign(ctx, admin, device.Code, &bob.ID)
	require.NoError(t, err)
	require.Equal(t, bob.ID, *dto.OwnerID)

	_, err = f.svc.Get(ctx, carol, device.Code)
	require.ErrorIs(t, err, ErrDeviceNotFound)

	var grants int64
	require.NoError(t, f.conn.Model(&models.ShareGrant{}).Count(&grants).Error)
	require.Zero(t, grants)

	dto, err = f.svc.Reassign(ctx, admin, device.Code, nil)
	require.NoError(t, err)
	require.Nil(t, dto.OwnerID)
	require.Nil(t, dto.AllocatedAt)
	require.True(t, dto.IsActive, "unassigning keeps the device active")

	ghost := uuid.New()
	_, err = f.svc.Reassign(ctx, admin, device.Code, &ghost)
	require.ErrorIs(t, err, ErrUnknownOwner)

	_, err = f.svc.Reassign(ctx, admin, "0000000000000000", nil)
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestReassignToSameOwnerKeepsGrants(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.user(t, enums.RoleCustomer, "9000000001")
	carol := f.user(t, enums.RoleCustomer, "9000000003")

	_, err := f.svc.Create(ctx, admin, CreateInput{Code: "2222333344446666", Name: "Tank", OwnerID: &alice.ID})
	require.NoError(t, err)
	var device models.Device
	require.NoError(t, f.conn.Where("code = ?", "2222333344446666").First(&device).Error)
	require.NoError(t, f.conn.Create(&models.ShareGrant{DeviceID: device.ID, RecipientID: carol.ID, SharedAt: device.CreatedAt}).Error)

	_, err = f.svc.Reassign(ctx, admin, device.Code, &alice.ID)
	require.NoError(t, err)

	var grants int64
	require.NoError(t, f.conn.Model(&models.ShareGrant{}).Count(&grants).Error)
	require.Equal(t, int64(1), grants)
}

func TestVisibilityAndQR(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.user(t, enums.RoleCustomer, "9000000001")
	mallory := f.user(t, enums.RoleCustomer, "9000000002")

	_, err := f.svc.Create(ctx, admin, CreateInput{Code: "3333444455556666", Name: "Well", OwnerID: &alice.ID})
	require.NoError(t, err)
	require.NoError(t, f.conn.Create(&models.Device{Code: "3333444455557777", Name: "Bare"}).Error)

	png, err := f.svc.QRImage(ctx, alice, "3333444455556666")
	require.NoError(t, err)
	require.Equal(t, []byte("png:3333444455556666"), png)

	_, err = f.svc.QRImage(ctx, mallory, "3333444455556666")
	require.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = f.svc.QRImage(ctx, admin, "3333444455557777")
	require.ErrorIs(t, err, ErrQRUnavailable)

	list, err := f.svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, list, 2)
	var named int
	for _, d := range list {
		if d.OwnerName != nil {
			named++
			require.Equal(t, "customer9000000001", *d.OwnerName)
		}
	}
	require.Equal(t, 1, named)

	mine, err := f.svc.List(ctx, mallory)
	require.NoError(t, err)
	require.Empty(t, mine)

	var bare models.Device
	require.NoError(t, f.conn.Where("code = ?", "3333444455557777").First(&bare).Error)
	_, err = f.svc.Visible(ctx, alice, bare.ID)
	require.ErrorIs(t, err, ErrDeviceNotFound)
	visible, err := f.svc.Visible(ctx, admin, bare.ID)
	require.NoError(t, err)
	require.Equal(t, "Bare", visible.Name)
	_, err = f.svc.Visible(ctx, admin, uuid.New())
	require.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestDeleteCascadesAndM2M(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.user(t, enums.RoleCustomer, "9000000001")

	dto, err := f.svc.Create(ctx, admin, CreateInput{Code: "4444555566667777", Name: "Sump", OwnerID: &alice.ID})
	require.NoError(t, err)
	reading := 12.5
	require.NoError(t, f.conn.Create(&models.TemperatureReading{DeviceID: dto.ID, Temperature: &reading, RecordedAt: dto.CreatedAt}).Error)
	require.NoError(t, f.conn.Create(&models.PressureReading{DeviceID: dto.ID, Pressure1: &reading, RecordedAt: dto.CreatedAt}).Error)

	updated, err := f.svc.UpdateM2M(ctx, admin, dto.Code, " 5754123456789 ")
	require.NoError(t, err)
	require.Equal(t, "5754123456789", *updated.M2MNumber)

	_, err = f.svc.UpdateM2M(ctx, admin, dto.Code, " ")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
	_, err = f.svc.UpdateM2M(ctx, admin, "0000000000000000", "1")
	require.ErrorIs(t, err, ErrDeviceNotFound)

	counts, err := f.svc.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, Counts{Total: 1, Assigned: 1, Unassigned: 0}, counts)

	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(f.svc.Delete(ctx, alice, dto.Code)))
	require.NoError(t, f.svc.Delete(ctx, admin, dto.Code))
	require.ErrorIs(t, f.svc.Delete(ctx, admin, dto.Code), ErrDeviceNotFound)

	for _, model := range []any{&models.Device{}, &models.TemperatureReading{}, &models.PressureReading{}} {
		var n int64
		require.NoError(t, f.conn.Model(model).Count(&n).Error)
		require.Zero(t, n, fmt.Sprintf("%T rows left", model))
	}
}
