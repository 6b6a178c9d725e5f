package visibility

import (
	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
)

// ErrDeviceHidden is what callers see for devices they may not read. It is
// indistinguishable from a missing device on purpose.
var ErrDeviceHidden = pkgerrors.New(pkgerrors.CodeNotFound, "device not found")

// Viewer is the authenticated caller asking to read a device.
type Viewer struct {
	ID   uuid.UUID
	Role enums.Role
}

// DeviceRef carries the ownership facts the decision needs.
type DeviceRef struct {
	ID      uuid.UUID
	OwnerID *uuid.UUID
}

// RefOf builds a DeviceRef from a stored device.
func RefOf(device *models.Device) DeviceRef {
	if device == nil {
		return DeviceRef{}
	}
	return DeviceRef{ID: device.ID, OwnerID: device.OwnerID}
}

// CanAccess decides whether viewer may read device data. granted reports an
// active share grant for (device, viewer).
func CanAccess(viewer Viewer, device DeviceRef, granted bool) bool {
	switch viewer.Role {
	case enums.RoleAdmin, enums.RoleSuperadmin:
		return true
	case enums.RoleCustomer:
		if device.OwnerID != nil && *device.OwnerID == viewer.ID {
			return true
		}
		return granted
	default:
		return false
	}
}

// OwnsOrElevated is the fast path that skips the grant lookup.
func OwnsOrElevated(viewer Viewer, device DeviceRef) bool {
	return CanAccess(viewer, device, false)
}

// GrantChecker resolves share grants for the slow path.
type GrantChecker func(deviceID, recipientID uuid.UUID) (bool, error)

// EnsureDeviceVisible returns ErrDeviceHidden when viewer may not read device.
// hasGrant is only consulted for customers who do not own the device.
func EnsureDeviceVisible(viewer Viewer, device *models.Device, hasGrant GrantChecker) error {
	if device == nil {
		return ErrDeviceHidden
	}
	ref := RefOf(device)
	if OwnsOrElevated(viewer, ref) {
		return nil
	}
	if viewer.Role != enums.RoleCustomer || hasGrant == nil {
		return ErrDeviceHidden
	}
	granted, err := hasGrant(device.ID, viewer.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check share grant")
	}
	if !CanAccess(viewer, ref, granted) {
		return ErrDeviceHidden
	}
	return nil
}
