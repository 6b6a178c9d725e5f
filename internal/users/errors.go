package users

import pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"

var (
	ErrDuplicatePhone = pkgerrors.New(pkgerrors.CodeConflict, "phone number already registered")
	ErrInvalidRole    = pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	ErrUserNotFound   = pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
)
