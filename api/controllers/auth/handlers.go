package auth

import (
	"net/http"
	"time"

	"github.com/sensorgrid/devicehub-backend/api/controllers/actorctx"
	"github.com/sensorgrid/devicehub-backend/api/middleware"
	"github.com/sensorgrid/devicehub-backend/api/responses"
	"github.com/sensorgrid/devicehub-backend/api/validators"
	"github.com/sensorgrid/devicehub-backend/internal/auth"
	"github.com/sensorgrid/devicehub-backend/internal/otp"
	"github.com/sensorgrid/devicehub-backend/internal/users"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
)

const maxUserAgent = 512

type signupRequest struct {
	Name  string  `json:"name" validate:"required,min=2,max=100"`
	Phone string  `json:"phone" validate:"required,phone"`
	Email *string `json:"email" validate:"omitempty,email,max=255"`
}

type sendOTPRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
	Role  string `json:"role" validate:"omitempty,oneof=admin customer"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
	OTP   string `json:"otp" validate:"required,numeric,min=4,max=10"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func Signup(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body signupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Signup(r.Context(), auth.SignupRequest{
			Name:  validators.SanitizeString(body.Name, 100),
			Phone: body.Phone,
			Email: validators.OptionalString(body.Email, 255),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

// SendOTP issues a login code. role narrows which kind of account may log in.
func SendOTP(svc otp.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body sendOTPRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RequestCode(r.Context(), body.Phone, body.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func VerifyOTP(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body verifyOTPRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), auth.LoginRequest{Phone: body.Phone, OTP: body.OTP}, auth.ClientInfo{
			IP:        middleware.ClientIP(r),
			UserAgent: validators.SanitizeString(r.UserAgent(), maxUserAgent),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Refresh rotates the session. The expired access token travels in the
// Authorization header so its jti can be matched.
func Refresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken := middleware.BearerToken(r)
		if accessToken == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pair, err := svc.Refresh(r.Context(), accessToken, body.RefreshToken)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pair)
	}
}

func Profile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorctx.Resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Profile(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

func Logout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessID := middleware.AccessIDFromContext(r.Context())
		if accessID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		if err := svc.Logout(r.Context(), accessID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "logged out"})
	}
}

// CleanupOTPs expires every pending code past its deadline without waiting
// for the cron worker.
func CleanupOTPs(svc otp.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expired, err := svc.ExpireStale(r.Context(), time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithField(r.Context(), "expired", expired), "otp sessions expired on demand")
		responses.WriteSuccess(w, map[string]int64{"expired": expired})
	}
}
