package devices

import pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"

var (
	ErrDuplicateCode  = pkgerrors.New(pkgerrors.CodeConflict, "device with this code already exists")
	ErrUnknownOwner   = pkgerrors.New(pkgerrors.CodeValidation, "assigned user does not exist")
	ErrAlreadyOwned   = pkgerrors.New(pkgerrors.CodeConflict, "device is already assigned to another customer")
	ErrDeviceNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	ErrInvalidCount   = pkgerrors.New(pkgerrors.CodeValidation, "count must be between 1 and 1000")
	ErrInvalidCode    = pkgerrors.New(pkgerrors.CodeValidation, "device code must be exactly 16 digits")
	ErrQRUnavailable  = pkgerrors.New(pkgerrors.CodeNotFound, "QR code not available for this device")
)
