package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sensorgrid/devicehub-backend/internal/devices"
	"github.com/sensorgrid/devicehub-backend/internal/otp"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
)

type fakeCounts struct {
	roles    map[enums.Role]int64
	rolesErr error
	since    time.Time
	otpSince time.Time
}

func (f *fakeCounts) CountByRole(ctx context.Context) (map[enums.Role]int64, error) {
	return f.roles, f.rolesErr
}

func (f *fakeCounts) Counts(ctx context.Context) (devices.Counts, error) {
	return devices.Counts{Total: 5, Assigned: 3, Unassigned: 2}, nil
}

func (f *fakeCounts) CountSince(ctx context.Context, since time.Time) (int64, error) {
	f.since = since
	return 4, nil
}

func (f *fakeCounts) Stats(ctx context.Context, since time.Time) (otp.Stats, error) {
	f.otpSince = since
	return otp.Stats{Total: 9, Verified: 6, Active: 1}, nil
}

func TestDashboardAggregates(t *testing.T) {
	fake := &fakeCounts{roles: map[enums.Role]int64{enums.RoleCustomer: 10, enums.RoleAdmin: 2, enums.RoleSuperadmin: 1}}
	svcIface, err := NewService(ServiceParams{Users: fake, Devices: fake, Logins: fake, OTP: fake})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	now := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	svcIface.(*service).now = func() time.Time { return now }

	got, err := svcIface.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Users.Total != 13 || got.Users.Admins != 2 {
		t.Fatalf("unexpected user counts %+v", got.Users)
	}
	if got.Devices.Unassigned != 2 || got.RecentLogins != 4 || got.OTP.Verified != 6 {
		t.Fatalf("unexpected dashboard %+v", got)
	}
	if !fake.since.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Fatalf("login window start %s", fake.since)
	}
	if !fake.otpSince.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("otp window start %s", fake.otpSince)
	}
}

func TestDashboardWrapsStorageErrors(t *testing.T) {
	fake := &fakeCounts{rolesErr: errors.New("boom")}
	svc, err := NewService(ServiceParams{Users: fake, Devices: fake, Logins: fake, OTP: fake})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Get(context.Background()); pkgerrors.CodeOf(err) != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
