package devices

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sensorgrid/devicehub-backend/internal/sharing"
	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
)

func TestShareRevokeAndDeleteDriveAccess(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	alice := f.user(t, enums.RoleCustomer, "9000000001")
	bob := f.user(t, enums.RoleCustomer, "9000000002")

	shares, err := sharing.NewService(sharing.ServiceParams{
		Repo:   sharing.NewRepository(f.conn),
		Tx:     db.NewFromGorm(f.conn),
		Logger: logger.Nop(),
	})
	require.NoError(t, err)

	dto, err := f.svc.Create(ctx, admin, CreateInput{Code: "6666777788889999", Name: "Borewell", OwnerID: &alice.ID})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, bob, dto.Code)
	require.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = shares.Share(ctx, alice, dto.ID, "9000000002")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, bob, dto.Code)
	require.NoError(t, err)
	require.Equal(t, alice.ID, *got.OwnerID)
	_, err = f.svc.QRImage(ctx, bob, dto.Code)
	require.NoError(t, err)

	require.NoError(t, shares.Revoke(ctx, alice, dto.Code, bob.ID))
	_, err = f.svc.Get(ctx, bob, dto.Code)
	require.ErrorIs(t, err, ErrDeviceNotFound)
	_, err = f.svc.QRImage(ctx, bob, dto.Code)
	require.ErrorIs(t, err, ErrDeviceNotFound)

	owned, err := f.svc.Get(ctx, alice, dto.Code)
	require.NoError(t, err)
	require.Equal(t, alice.ID, *owned.OwnerID, "revoke leaves ownership alone")

	_, err = shares.Share(ctx, alice, dto.ID, "9000000002")
	require.NoError(t, err)
	received, err := shares.ListReceived(ctx, bob, bob.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)

	require.NoError(t, f.svc.Delete(ctx, admin, dto.Code))

	received, err = shares.ListReceived(ctx, bob, bob.ID)
	require.NoError(t, err)
	require.Empty(t, received)

	var grants int64
	require.NoError(t, f.conn.Model(&models.ShareGrant{}).Count(&grants).Error)
	require.Zero(t, grants)
}
