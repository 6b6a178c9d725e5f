package stats

import (
	"context"
	"time"

	"github.com/sensorgrid/devicehub-backend/internal/devices"
	"github.com/sensorgrid/devicehub-backend/internal/otp"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
)

const (
	loginWindow = 7 * 24 * time.Hour
	otpWindow   = 24 * time.Hour
)

type userCounter interface {
	CountByRole(ctx context.Context) (map[enums.Role]int64, error)
}

type deviceCounter interface {
	Counts(ctx context.Context) (devices.Counts, error)
}

type loginCounter interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type otpCounter interface {
	Stats(ctx context.Context, since time.Time) (otp.Stats, error)
}

// UserCounts breaks accounts down by role.
type UserCounts struct {
	Customers   int64 `json:"customers"`
	Admins      int64 `json:"admins"`
	Superadmins int64 `json:"superadmins"`
	Total       int64 `json:"total"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Users        UserCounts     `json:"users"`
	Devices      devices.Counts `json:"devices"`
	RecentLogins int64          `json:"recent_logins"`
	OTP          otp.Stats      `json:"otp"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

type Service interface {
	Get(ctx context.Context) (*Dashboard, error)
}

type ServiceParams struct {
	Users   userCounter
	Devices deviceCounter
	Logins  loginCounter
	OTP     otpCounter
}

type service struct {
	users   userCounter
	devices deviceCounter
	logins  loginCounter
	otp     otpCounter
	now     func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Users == nil || p.Devices == nil || p.Logins == nil || p.OTP == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stats dependencies required")
	}
	return &service{
		users:   p.Users,
		devices: p.Devices,
		logins:  p.Logins,
		otp:     p.OTP,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Get(ctx context.Context) (*Dashboard, error) {
	now := s.now()

	byRole, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	deviceCounts, err := s.devices.Counts(ctx)
	if err != nil {
		return nil, err
	}
	logins, err := s.logins.CountSince(ctx, now.Add(-loginWindow))
	if err != nil {
		return nil, err
	}
	otpStats, err := s.otp.Stats(ctx, now.Add(-otpWindow))
	if err != nil {
		return nil, err
	}

	users := UserCounts{
		Customers:   byRole[enums.RoleCustomer],
		Admins:      byRole[enums.RoleAdmin],
		Superadmins: byRole[enums.RoleSuperadmin],
	}
	users.Total = users.Customers + users.Admins + users.Superadmins

	return &Dashboard{
		Users:        users,
		Devices:      deviceCounts,
		RecentLogins: logins,
		OTP:          otpStats,
		GeneratedAt:  now,
	}, nil
}
