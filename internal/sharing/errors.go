package sharing

import pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"

var (
	ErrNotOwner          = pkgerrors.New(pkgerrors.CodeForbidden, "you can only share devices that belong to you")
	ErrRecipientNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "no customer found with this phone number")
	ErrAlreadyShared     = pkgerrors.New(pkgerrors.CodeConflict, "device is already shared with this user")
	ErrGrantNotFound     = pkgerrors.New(pkgerrors.CodeNotFound, "device is not shared with this user")
	ErrSelfShare         = pkgerrors.New(pkgerrors.CodeValidation, "cannot share a device with yourself")
	ErrDeviceNotFound    = pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	ErrUserNotFound      = pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
)
