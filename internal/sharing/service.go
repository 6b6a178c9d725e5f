package sharing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/metrics"
	"github.com/sensorgrid/devicehub-backend/pkg/phone"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages read-only device grants between customers.
type Service interface {
	Share(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID, recipientPhone string) (*ShareResult, error)
	Revoke(ctx context.Context, actor rbac.Actor, deviceCode string, recipientID uuid.UUID) error
	ListSent(ctx context.Context, actor rbac.Actor, ownerID uuid.UUID) ([]SentRow, error)
	ListReceived(ctx context.Context, actor rbac.Actor, recipientID uuid.UUID) ([]ReceivedRow, error)
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Metrics *metrics.DomainMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.DomainMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sharing repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Share re-reads ownership inside the transaction so a grant is never
// issued against a stale view of the owner.
func (s *service) Share(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID, recipientPhone string) (*ShareResult, error) {
	if deviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id is required")
	}
	normalized, err := phone.Normalize(recipientPhone)
	if err != nil {
		return nil, err
	}

	var result *ShareResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		device, err := repo.FindDeviceByID(ctx, deviceID)
		if err != nil {
			if db.IsNotFound(err) {
				return ErrNotOwner
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
		}
		if !device.IsOwnedBy(actor.ID) {
			return ErrNotOwner
		}

		recipient, err := repo.FindCustomerByPhone(ctx, normalized)
		if err != nil {
			if db.IsNotFound(err) {
				return ErrRecipientNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
		}
		if recipient.ID == actor.ID {
			return ErrSelfShare
		}

		grant := &models.ShareGrant{
			DeviceID:    device.ID,
			RecipientID: recipient.ID,
			SharedAt:    s.now(),
		}
		if err := repo.Create(ctx, grant); err != nil {
			if pkgerrors.As(err) != nil {
				return err
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create grant")
		}
		result = &ShareResult{
			DeviceID:      device.ID,
			RecipientID:   recipient.ID,
			RecipientName: recipient.Name,
			SharedAt:      grant.SharedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(metrics.EventShareCreated)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"device_id":    result.DeviceID.String(),
		"recipient_id": result.RecipientID.String(),
	})
	s.logg.Info(ctx, "device shared")
	return result, nil
}

func (s *service) Revoke(ctx context.Context, actor rbac.Actor, deviceCode string, recipientID uuid.UUID) error {
	device, err := s.repo.FindDeviceByCode(ctx, strings.TrimSpace(deviceCode))
	if err != nil {
		if db.IsNotFound(err) {
			return ErrDeviceNotFound
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
	}
	if !actor.Role.IsElevated() && !device.IsOwnedBy(actor.ID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "you can only revoke access for your own devices")
	}
	if _, err := s.repo.FindUserByID(ctx, recipientID); err != nil {
		if db.IsNotFound(err) {
			return ErrUserNotFound
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
	}

	removed, err := s.repo.Delete(ctx, device.ID, recipientID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete grant")
	}
	if !removed {
		return ErrGrantNotFound
	}

	s.metrics.Inc(metrics.EventShareRevoked)
	ctx = s.logg.WithDeviceCode(ctx, device.Code)
	ctx = s.logg.WithField(ctx, "recipient_id", recipientID.String())
	s.logg.Info(ctx, "device share revoked")
	return nil
}

func (s *service) ListSent(ctx context.Context, actor rbac.Actor, ownerID uuid.UUID) ([]SentRow, error) {
	if err := ensureSelfOrElevated(actor, ownerID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSent(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sent grants")
	}
	return rows, nil
}

func (s *service) ListReceived(ctx context.Context, actor rbac.Actor, recipientID uuid.UUID) ([]ReceivedRow, error) {
	if err := ensureSelfOrElevated(actor, recipientID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListReceived(ctx, recipientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list received grants")
	}
	return rows, nil
}

func ensureSelfOrElevated(actor rbac.Actor, userID uuid.UUID) error {
	if actor.Role.IsElevated() || actor.IsSelf(userID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
}
