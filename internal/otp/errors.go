package otp

import pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"

var (
	ErrInvalidCode        = pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired OTP")
	ErrPhoneNotRegistered = pkgerrors.New(pkgerrors.CodeNotFound, "phone number not registered")
	ErrInvalidRoleHint    = pkgerrors.New(pkgerrors.CodeValidation, "role must be admin or customer")
)
