package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/internal/users"
	"github.com/sensorgrid/devicehub-backend/pkg/config"
	"github.com/sensorgrid/devicehub-backend/pkg/db/dbtest"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/sms"
)

type captureQueue struct {
	mu   sync.Mutex
	msgs []sms.Message
	err  error
}

func (q *captureQueue) Enqueue(msg sms.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

var testConfig = config.OTPConfig{
	TTL:              10 * time.Minute,
	Length:           6,
	EchoCode:         true,
	ArgonMemoryKB:    64,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type fixture struct {
	conn  *gorm.DB
	svc   *service
	queue *captureQueue
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	queue := &captureQueue{}
	svc, err := NewService(ServiceParams{
		Repo:        NewRepository(conn),
		Users:       users.NewRepository(conn),
		Queue:       queue,
		Config:      testConfig,
		SMSTemplate: "code %s",
		Logger:      logger.Nop(),
	})
	require.NoError(t, err)

	f := &fixture{conn: conn, svc: svc.(*service), queue: queue, clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	f.svc.now = func() time.Time { return f.clock }

	require.NoError(t, conn.Create(&models.User{Name: "Cust", Phone: "9000000001", Role: enums.RoleCustomer}).Error)
	require.NoError(t, conn.Create(&models.User{Name: "Root", Phone: "9000000002", Role: enums.RoleSuperadmin}).Error)
	return f
}

func TestRequestAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RequestCode(ctx, "+91 90000-00001", "customer")
	require.NoError(t, err)
	require.Len(t, res.Code, 6)
	require.Equal(t, enums.RoleCustomer, res.Role)
	require.Len(t, f.queue.msgs, 1)
	require.Equal(t, "code "+res.Code, f.queue.msgs[0].Body)
	require.Equal(t, "9000000001", f.queue.msgs[0].To)

	var stored models.OTPSession
	require.NoError(t, f.conn.First(&stored).Error)
	require.NotContains(t, stored.CodeHash, res.Code)

	user, err := f.svc.VerifyCode(ctx, "9000000001", res.Code)
	require.NoError(t, err)
	require.Equal(t, "Cust", user.Name)

	_, err = f.svc.VerifyCode(ctx, "9000000001", res.Code)
	require.ErrorIs(t, err, ErrInvalidCode, "a code verifies once")
}

func TestRequestRoleHint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestCode(ctx, "9000000001", "admin")
	require.ErrorIs(t, err, ErrPhoneNotRegistered)
	_, err = f.svc.RequestCode(ctx, "9000000002", "customer")
	require.ErrorIs(t, err, ErrPhoneNotRegistered)
	_, err = f.svc.RequestCode(ctx, "9000000002", "admin")
	require.NoError(t, err)
	_, err = f.svc.RequestCode(ctx, "9000000002", "owner")
	require.ErrorIs(t, err, ErrInvalidRoleHint)
	_, err = f.svc.RequestCode(ctx, "9111111111", "")
	require.ErrorIs(t, err, ErrPhoneNotRegistered)
	_, err = f.svc.RequestCode(ctx, "123", "")
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestNewCodeSupersedesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.RequestCode(ctx, "9000000001", "")
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Second)
	second, err := f.svc.RequestCode(ctx, "9000000001", "")
	require.NoError(t, err)

	if first.Code != second.Code {
		_, err = f.svc.VerifyCode(ctx, "9000000001", first.Code)
		require.ErrorIs(t, err, ErrInvalidCode)
	}
	_, err = f.svc.VerifyCode(ctx, "9000000001", second.Code)
	require.NoError(t, err)
}

func TestExpiredCodeRejectedAndSwept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RequestCode(ctx, "9000000001", "")
	require.NoError(t, err)

	f.clock = f.clock.Add(11 * time.Minute)
	_, err = f.svc.VerifyCode(ctx, "9000000001", res.Code)
	require.ErrorIs(t, err, ErrInvalidCode)

	n, err := f.svc.ExpireStale(ctx, f.clock)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = f.svc.PurgeConsumedBefore(ctx, f.clock.Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = f.svc.PurgeConsumedBefore(ctx, f.clock.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestWrongCodeDoesNotConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.RequestCode(ctx, "9000000001", "")
	require.NoError(t, err)
	wrong := "000000"
	if res.Code == wrong {
		wrong = "111111"
	}
	_, err = f.svc.VerifyCode(ctx, "9000000001", wrong)
	require.ErrorIs(t, err, ErrInvalidCode)

	_, err = f.svc.VerifyCode(ctx, "9000000001", res.Code)
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, f.clock.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, Stats{Total: 1, Verified: 1, Active: 0}, stats)
}

func TestQueueFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.queue.err = errors.New("queue full")

	res, err := f.svc.RequestCode(context.Background(), "9000000001", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)
}
