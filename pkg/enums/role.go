package enums

import "fmt"

// Role is the account-level role attached to every user.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var validRoles = []Role{
	RoleCustomer,
	RoleAdmin,
	RoleSuperadmin,
}

// Roles returns every known role, lowest privilege first.
func Roles() []Role {
	out := make([]Role, len(validRoles))
	copy(out, validRoles)
	return out
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	return r.Rank() > 0
}

// Rank orders roles by privilege. Unknown roles rank 0 and never pass a check.
func (r Role) Rank() int {
	switch r {
	case RoleCustomer:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperadmin:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r carries at least the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return r.IsValid() && min.IsValid() && r.Rank() >= min.Rank()
}

// IsElevated reports admin or superadmin.
func (r Role) IsElevated() bool {
	switch r {
	case RoleAdmin, RoleSuperadmin:
		return true
	case RoleCustomer:
		return false
	default:
		return false
	}
}

// ParseRole converts raw input into a Role.
func ParseRole(value string) (Role, error) {
	for _, candidate := range validRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
