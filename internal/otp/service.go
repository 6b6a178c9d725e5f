package otp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/config"
	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/metrics"
	"github.com/sensorgrid/devicehub-backend/pkg/phone"
	"github.com/sensorgrid/devicehub-backend/pkg/security"
	"github.com/sensorgrid/devicehub-backend/pkg/sms"
)

type sessionsRepository interface {
	Replace(ctx context.Context, session *models.OTPSession, at time.Time) error
	LatestOpen(ctx context.Context, phone string, now time.Time) (*models.OTPSession, error)
	Consume(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	PurgeConsumedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, since, now time.Time) (Stats, error)
}

type userFinder interface {
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
}

type messageQueue interface {
	Enqueue(msg sms.Message) error
}

// RequestResult is returned after a code was issued. Code is only set when
// echoing is enabled for local development.
type RequestResult struct {
	Phone     string     `json:"phone"`
	Role      enums.Role `json:"role"`
	UserID    uuid.UUID  `json:"user_id"`
	UserName  string     `json:"user_name"`
	ExpiresAt time.Time  `json:"expires_at"`
	Code      string     `json:"otp,omitempty"`
}

// Service issues and verifies one-time login codes.
type Service interface {
	RequestCode(ctx context.Context, rawPhone, roleHint string) (*RequestResult, error)
	VerifyCode(ctx context.Context, rawPhone, code string) (*models.User, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	PurgeConsumedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

type ServiceParams struct {
	Repo        sessionsRepository
	Users       userFinder
	Queue       messageQueue
	Config      config.OTPConfig
	SMSTemplate string
	Metrics     *metrics.DomainMetrics
	Logger      *logger.Logger
}

type service struct {
	repo     sessionsRepository
	users    userFinder
	queue    messageQueue
	cfg      config.OTPConfig
	params   security.ArgonParams
	template string
	metrics  *metrics.DomainMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "otp repository required")
	}
	if p.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user finder required")
	}
	if p.Queue == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sms queue required")
	}
	if p.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	cfg := p.Config
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &service{
		repo:     p.Repo,
		users:    p.Users,
		queue:    p.Queue,
		cfg:      cfg,
		params:   security.ParamsFromConfig(cfg),
		template: p.SMSTemplate,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) RequestCode(ctx context.Context, rawPhone, roleHint string) (*RequestResult, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByPhone(ctx, normalized)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrPhoneNotRegistered
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	ok, err := matchesHint(user.Role, roleHint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPhoneNotRegistered
	}

	code, err := security.RandomDigits(s.cfg.Length)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}
	hash, err := security.HashCode(code, s.params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash otp")
	}

	now := s.now()
	userID := user.ID
	session := &models.OTPSession{
		UserID:    &userID,
		Phone:     normalized,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.cfg.TTL),
	}
	if err := s.repo.Replace(ctx, session, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp session")
	}
	s.metrics.Inc(metrics.EventOTPRequested)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"phone":   phone.Mask(normalized),
		"user_id": user.ID.String(),
	})
	if err := s.queue.Enqueue(sms.Message{To: normalized, Body: sms.FormatOTP(s.template, code)}); err != nil {
		s.metrics.Inc(metrics.EventSMSQueueRejected)
		s.logg.Error(ctx, "otp sms not queued", err)
	} else {
		s.logg.Info(ctx, "otp issued")
	}

	result := &RequestResult{
		Phone:     normalized,
		Role:      user.Role,
		UserID:    user.ID,
		UserName:  user.Name,
		ExpiresAt: session.ExpiresAt,
	}
	if s.cfg.EchoCode {
		result.Code = code
	}
	return result, nil
}

func (s *service) VerifyCode(ctx context.Context, rawPhone, code string) (*models.User, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "otp is required")
	}

	now := s.now()
	session, err := s.repo.LatestOpen(ctx, normalized, now)
	if err != nil {
		if db.IsNotFound(err) {
			s.metrics.Inc(metrics.EventOTPRejected)
			return nil, ErrInvalidCode
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp session")
	}

	match, err := security.VerifyCode(code, session.CodeHash)
	if err != nil {
		if errors.Is(err, security.ErrInvalidHash) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored otp hash is malformed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify otp")
	}
	if !match {
		s.metrics.Inc(metrics.EventOTPRejected)
		return nil, ErrInvalidCode
	}

	consumed, err := s.repo.Consume(ctx, session.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume otp session")
	}
	if !consumed {
		s.metrics.Inc(metrics.EventOTPRejected)
		return nil, ErrInvalidCode
	}

	user, err := s.users.FindByPhone(ctx, normalized)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrPhoneNotRegistered
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	s.metrics.Inc(metrics.EventOTPVerified)
	return user, nil
}

func (s *service) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.ExpireStale(ctx, now.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire otp sessions")
	}
	return n, nil
}

func (s *service) PurgeConsumedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.repo.PurgeConsumedBefore(ctx, cutoff.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge otp sessions")
	}
	return n, nil
}

func (s *service) Stats(ctx context.Context, since time.Time) (Stats, error) {
	stats, err := s.repo.Stats(ctx, since.UTC(), s.now())
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp stats")
	}
	return stats, nil
}

// matchesHint applies the login-form role filter. An empty hint accepts any role.
func matchesHint(role enums.Role, hint string) (bool, error) {
	switch strings.TrimSpace(hint) {
	case "":
		return role.IsValid(), nil
	case "admin":
		return role.IsElevated(), nil
	case "customer":
		return role == enums.RoleCustomer, nil
	default:
		return false, ErrInvalidRoleHint
	}
}
