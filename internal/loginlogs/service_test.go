package loginlogs

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
)

func TestRecordAndList(t *testing.T) {
	conn := dbtest.Open(t)
	svcIface, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	svc := svcIface.(*service)
	ctx := context.Background()

	admin := &models.User{Name: "Ops", Phone: "9000000001", Role: enums.RoleAdmin}
	require.NoError(t, conn.Create(admin).Error)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		svc.now = func() time.Time { return at }
		require.NoError(t, svc.Record(ctx, admin.ID, " 10.0.0.1 ", "curl/8"))
	}

	root := rbac.Actor{ID: uuid.New(), Role: enums.RoleSuperadmin}
	rows, err := svc.List(ctx, root, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Ops", rows[0].UserName)
	require.Equal(t, "10.0.0.1", rows[0].IPAddress)
	require.True(t, rows[0].LoggedInAt.After(rows[1].LoggedInAt))

	n, err := svc.CountSince(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = svc.List(ctx, rbac.Actor{ID: admin.ID, Role: enums.RoleAdmin}, 10)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}
