package loginlogs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/pagination"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

const maxUserAgentLen = 512

type logsRepository interface {
	Create(ctx context.Context, log *models.LoginLog) error
	List(ctx context.Context, limit int) ([]Entry, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// Service records and lists elevated-role logins.
type Service interface {
	Record(ctx context.Context, userID uuid.UUID, ip, userAgent string) error
	List(ctx context.Context, actor rbac.Actor, limit int) ([]Entry, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type service struct {
	repo logsRepository
	now  func() time.Time
}

func NewService(repo logsRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "login log repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Record(ctx context.Context, userID uuid.UUID, ip, userAgent string) error {
	userAgent = strings.TrimSpace(userAgent)
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}
	err := s.repo.Create(ctx, &models.LoginLog{
		UserID:     userID,
		IPAddress:  strings.TrimSpace(ip),
		UserAgent:  userAgent,
		LoggedInAt: s.now(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	return nil
}

func (s *service) List(ctx context.Context, actor rbac.Actor, limit int) ([]Entry, error) {
	if !rbac.Allowed(actor.Role, rbac.OpLoginLogList) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "superadmin privileges required")
	}
	rows, err := s.repo.List(ctx, pagination.Audit.Normalize(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list login logs")
	}
	return rows, nil
}

func (s *service) CountSince(ctx context.Context, since time.Time) (int64, error) {
	n, err := s.repo.CountSince(ctx, since.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count logins")
	}
	return n, nil
}
