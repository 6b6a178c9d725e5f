package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/internal/users"
	pkgAuth "github.com/sensorgrid/devicehub-backend/pkg/auth"
	"github.com/sensorgrid/devicehub-backend/pkg/auth/session"
	"github.com/sensorgrid/devicehub-backend/pkg/config"
	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/phone"
)

var (
	errInvalidSession = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired session")
	errUserGone       = pkgerrors.New(pkgerrors.CodeUnauthorized, "user no longer exists")
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*users.UserDTO, error)
	Login(ctx context.Context, req LoginRequest, client ClientInfo) (*LoginResponse, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error
}

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type codeVerifier interface {
	VerifyCode(ctx context.Context, rawPhone, code string) (*models.User, error)
}

type loginRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, ip, userAgent string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Users          userStore
	OTP            codeVerifier
	LoginLogs      loginRecorder
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

type service struct {
	users     userStore
	otp       codeVerifier
	loginLogs loginRecorder
	session   sessionManager
	jwtCfg    config.JWTConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.OTP == nil {
		return nil, fmt.Errorf("otp service is required")
	}
	if params.LoginLogs == nil {
		return nil, fmt.Errorf("login log recorder is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		users:     params.Users,
		otp:       params.OTP,
		loginLogs: params.LoginLogs,
		session:   params.SessionManager,
		jwtCfg:    params.JWTConfig,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Signup(ctx context.Context, req SignupRequest) (*users.UserDTO, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, err
	}
	var email *string
	if req.Email != nil {
		if trimmed := strings.TrimSpace(*req.Email); trimmed != "" {
			email = &trimmed
		}
	}

	user := &models.User{
		Name:  name,
		Phone: normalized,
		Email: email,
		Role:  enums.RoleCustomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	s.logg.Info(ctx, "customer signed up")
	return users.FromModel(user), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*LoginResponse, error) {
	user, err := s.otp.VerifyCode(ctx, req.Phone, req.OTP)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	if user.Role.IsElevated() {
		if err := s.loginLogs.Record(ctx, user.ID, client.IP, client.UserAgent); err != nil {
			s.logg.Error(ctx, "record login log", err)
		}
	}

	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "user logged in")
	return &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         users.FromModel(user),
	}, nil
}

// Refresh accepts an expired access token so long as its refresh session is
// still live. Claims are rebuilt from the stored user.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenPair, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, strings.TrimSpace(accessToken))
	if err != nil {
		return nil, errInvalidSession
	}

	rotation, err := s.session.Rotate(ctx, claims.ID, strings.TrimSpace(refreshToken))
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, errInvalidSession
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	if rotation.UserID != claims.UserID {
		_ = s.session.Revoke(ctx, rotation.AccessID)
		return nil, errInvalidSession
	}

	user, err := s.users.FindByID(ctx, rotation.UserID)
	if err != nil {
		_ = s.session.Revoke(ctx, rotation.AccessID)
		if db.IsNotFound(err) {
			return nil, errUserGone
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), payloadFor(user, rotation.AccessID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenPair{AccessToken: token, RefreshToken: rotation.RefreshToken}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errInvalidSession
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), payloadFor(user, accessID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := s.session.Generate(ctx, accessID, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &TokenPair{AccessToken: token, RefreshToken: refresh}, nil
}

func payloadFor(user *models.User, accessID string) pkgAuth.AccessTokenPayload {
	return pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Phone:  user.Phone,
		Name:   user.Name,
		Role:   user.Role,
		JTI:    accessID,
	}
}
