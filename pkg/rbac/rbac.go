package rbac

import (
	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/enums"
)

// Actor is the authenticated caller as seen by services. Role always comes
// from the stored user row, never from token claims alone.
type Actor struct {
	ID   uuid.UUID
	Role enums.Role
}

// IsSelf reports whether id is the actor's own account.
func (a Actor) IsSelf(id uuid.UUID) bool {
	return a.ID != uuid.Nil && a.ID == id
}

// Operation names every action that passes through the role gate.
type Operation string

const (
	OpSignup     Operation = "auth.signup"
	OpRequestOTP Operation = "auth.request_otp"
	OpVerifyOTP  Operation = "auth.verify_otp"
	OpRefresh    Operation = "auth.refresh"
	OpProfile    Operation = "auth.profile"
	OpLogout     Operation = "auth.logout"
	OpOTPCleanup Operation = "auth.cleanup_otps"

	OpDeviceList     Operation = "devices.list"
	OpDeviceGet      Operation = "devices.get"
	OpDeviceQR       Operation = "devices.qr"
	OpDeviceClaim    Operation = "devices.claim"
	OpDeviceOwned    Operation = "devices.owned"
	OpDeviceCreate   Operation = "devices.create"
	OpDeviceBulk     Operation = "devices.generate_bulk"
	OpDeviceReassign Operation = "devices.reassign"
	OpDeviceDelete   Operation = "devices.delete"
	OpDeviceM2M      Operation = "devices.m2m"

	OpShareCreate       Operation = "sharing.share"
	OpShareRevoke       Operation = "sharing.revoke"
	OpShareListSent     Operation = "sharing.sent"
	OpShareListReceived Operation = "sharing.received"
	OpShareCustomers    Operation = "sharing.customers"

	OpTelemetryRead   Operation = "telemetry.read"
	OpTelemetryRecord Operation = "telemetry.record"

	OpUserCreate     Operation = "users.create"
	OpUserList       Operation = "users.list"
	OpUserDelete     Operation = "users.delete"
	OpUserChangeRole Operation = "users.change_role"

	OpLoginLogList Operation = "loginlogs.list"
	OpStatsView    Operation = "stats.view"
)

// public marks operations that need no credential.
const public enums.Role = ""

var minimumRoles = map[Operation]enums.Role{
	OpSignup:     public,
	OpRequestOTP: public,
	OpVerifyOTP:  public,
	OpRefresh:    public,

	OpProfile:           enums.RoleCustomer,
	OpLogout:            enums.RoleCustomer,
	OpDeviceList:        enums.RoleCustomer,
	OpDeviceGet:         enums.RoleCustomer,
	OpDeviceQR:          enums.RoleCustomer,
	OpDeviceClaim:       enums.RoleCustomer,
	OpDeviceOwned:       enums.RoleCustomer,
	OpShareCreate:       enums.RoleCustomer,
	OpShareRevoke:       enums.RoleCustomer,
	OpShareListSent:     enums.RoleCustomer,
	OpShareListReceived: enums.RoleCustomer,
	OpShareCustomers:    enums.RoleCustomer,
	OpTelemetryRead:     enums.RoleCustomer,

	OpDeviceCreate:    enums.RoleAdmin,
	OpDeviceBulk:      enums.RoleAdmin,
	OpDeviceReassign:  enums.RoleAdmin,
	OpDeviceDelete:    enums.RoleAdmin,
	OpDeviceM2M:       enums.RoleAdmin,
	OpTelemetryRecord: enums.RoleAdmin,
	OpUserCreate:      enums.RoleAdmin,
	OpUserList:        enums.RoleAdmin,
	OpUserDelete:      enums.RoleAdmin,
	OpStatsView:       enums.RoleAdmin,
	OpOTPCleanup:      enums.RoleAdmin,

	OpUserChangeRole: enums.RoleSuperadmin,
	OpLoginLogList:   enums.RoleSuperadmin,
}

// MinimumRole returns the lowest role allowed to run op. ok is false for unknown operations.
func MinimumRole(op Operation) (role enums.Role, ok bool) {
	role, ok = minimumRoles[op]
	return role, ok
}

// IsPublic reports whether op can be called without authentication.
func IsPublic(op Operation) bool {
	role, ok := minimumRoles[op]
	return ok && role == public
}

// Allowed is the role gate. Unknown operations and unknown roles always deny.
func Allowed(role enums.Role, op Operation) bool {
	min, ok := minimumRoles[op]
	if !ok {
		return false
	}
	if min == public {
		return true
	}
	return role.AtLeast(min)
}

// CanCreate reports whether actor may create an account with the target role.
// Admins create customers only; superadmins create customers and admins.
func CanCreate(actor, target enums.Role) bool {
	switch actor {
	case enums.RoleSuperadmin:
		return target == enums.RoleCustomer || target == enums.RoleAdmin
	case enums.RoleAdmin:
		return target == enums.RoleCustomer
	case enums.RoleCustomer:
		return false
	default:
		return false
	}
}

// CanDelete reports whether actor may delete an account holding the target role.
// Superadmin accounts are never deletable through the API.
func CanDelete(actor, target enums.Role) bool {
	switch actor {
	case enums.RoleSuperadmin:
		return target == enums.RoleCustomer || target == enums.RoleAdmin
	case enums.RoleAdmin:
		return target == enums.RoleCustomer
	case enums.RoleCustomer:
		return false
	default:
		return false
	}
}

// CanChangeRole reports whether actor may change another account's role.
func CanChangeRole(actor enums.Role) bool {
	switch actor {
	case enums.RoleSuperadmin:
		return true
	case enums.RoleAdmin, enums.RoleCustomer:
		return false
	default:
		return false
	}
}

// CanViewRole reports whether actor may see accounts holding the target role in listings.
func CanViewRole(actor, target enums.Role) bool {
	switch actor {
	case enums.RoleSuperadmin:
		return target.IsValid()
	case enums.RoleAdmin:
		return target == enums.RoleCustomer
	case enums.RoleCustomer:
		return false
	default:
		return false
	}
}
