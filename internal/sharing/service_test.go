package sharing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/db/dbtest"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

type fixture struct {
	conn  *gorm.DB
	repo  Repository
	svc   Service
	alice rbac.Actor
	bob   rbac.Actor
	dev   *models.Device
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Client(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(ServiceParams{Repo: repo, Tx: client, Logger: logger.Nop()})
	require.NoError(t, err)

	f := fixture{conn: client.DB(), repo: repo, svc: svc}
	f.alice = f.user(t, "Alice", "9000000001", enums.RoleCustomer)
	f.bob = f.user(t, "Bob", "9000000002", enums.RoleCustomer)
	f.dev = f.device(t, "1111222233334444", &f.alice.ID)
	return f
}

func (f fixture) user(t *testing.T, name, number string, role enums.Role) rbac.Actor {
	t.Helper()
	u := &models.User{Name: name, Phone: number, Role: role}
	require.NoError(t, f.conn.Create(u).Error)
	return rbac.Actor{ID: u.ID, Role: role}
}

func (f fixture) device(t *testing.T, code string, owner *uuid.UUID) *models.Device {
	t.Helper()
	now := time.Now().UTC()
	d := &models.Device{Code: code, Name: "Device " + code, OwnerID: owner, IsActive: owner != nil, AllocatedAt: &now}
	require.NoError(t, f.conn.Create(d).Error)
	return d
}

func TestShareAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Share(ctx, f.alice, f.dev.ID, "+91 90000 00002")
	require.NoError(t, err)
	require.Equal(t, f.bob.ID, result.RecipientID)
	require.Equal(t, "Bob", result.RecipientName)

	ok, err := f.repo.HasGrant(ctx, f.dev.ID, f.bob.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Share(ctx, f.alice, f.dev.ID, "9000000002")
	require.ErrorIs(t, err, ErrAlreadyShared)

	sent, err := f.svc.ListSent(ctx, f.alice, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, "Bob", sent[0].RecipientName)
	require.Equal(t, f.dev.Code, sent[0].DeviceCode)

	received, err := f.svc.ListReceived(ctx, f.bob, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	require.Equal(t, "Alice", received[0].OwnerName)
	require.Equal(t, f.dev.ID, received[0].DeviceID)

	_, err = f.svc.ListSent(ctx, f.bob, f.alice.ID)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	admin := rbac.Actor{ID: uuid.New(), Role: enums.RoleAdmin}
	_, err = f.svc.ListReceived(ctx, admin, f.bob.ID)
	require.NoError(t, err)
}

func TestShareRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "Ops", "9000000009", enums.RoleAdmin)

	_, err := f.svc.Share(ctx, f.bob, f.dev.ID, "9000000001")
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.Share(ctx, f.alice, uuid.New(), "9000000002")
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.Share(ctx, f.alice, f.dev.ID, "9000000009")
	require.ErrorIs(t, err, ErrRecipientNotFound, "admins are not share recipients")

	_, err = f.svc.Share(ctx, f.alice, f.dev.ID, "9000000001")
	require.ErrorIs(t, err, ErrSelfShare)

	_, err = f.svc.Share(ctx, f.alice, f.dev.ID, "12345")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestShareSeesOwnershipChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.conn.Model(&models.Device{}).Where("id = ?", f.dev.ID).Update("owner_id", f.bob.ID).Error)
	_, err := f.svc.Share(ctx, f.alice, f.dev.ID, "9000000002")
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carol := f.user(t, "Carol", "9000000003", enums.RoleCustomer)

	_, err := f.svc.Share(ctx, f.alice, f.dev.ID, "9000000002")
	require.NoError(t, err)

	err = f.svc.Revoke(ctx, carol, f.dev.Code, f.bob.ID)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	require.ErrorIs(t, f.svc.Revoke(ctx, f.alice, "0000000000000000", f.bob.ID), ErrDeviceNotFound)
	require.ErrorIs(t, f.svc.Revoke(ctx, f.alice, f.dev.Code, uuid.New()), ErrUserNotFound)
	require.ErrorIs(t, f.svc.Revoke(ctx, f.alice, f.dev.Code, carol.ID), ErrGrantNotFound)

	require.NoError(t, f.svc.Revoke(ctx, f.alice, f.dev.Code, f.bob.ID))
	require.ErrorIs(t, f.svc.Revoke(ctx, f.alice, f.dev.Code, f.bob.ID), ErrGrantNotFound)

	_, err = f.svc.Share(ctx, f.alice, f.dev.ID, "9000000002")
	require.NoError(t, err)
	admin := rbac.Actor{ID: uuid.New(), Role: enums.RoleSuperadmin}
	require.NoError(t, f.svc.Revoke(ctx, admin, f.dev.Code, f.bob.ID))
}

func TestCreateDuplicateMapsToAlreadyShared(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	grant := func() *models.ShareGrant {
		return &models.ShareGrant{DeviceID: f.dev.ID, RecipientID: f.bob.ID, SharedAt: time.Now().UTC()}
	}
	require.NoError(t, f.repo.Create(ctx, grant()))
	require.ErrorIs(t, f.repo.Create(ctx, grant()), ErrAlreadyShared)
}
