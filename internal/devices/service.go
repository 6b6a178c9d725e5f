package devices

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/metrics"
	"github.com/sensorgrid/devicehub-backend/pkg/qr"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
	"github.com/sensorgrid/devicehub-backend/pkg/security"
	"github.com/sensorgrid/devicehub-backend/pkg/visibility"
)

const (
	CodeLength       = 16
	MaxBulkCount     = 1000
	codeAttemptLimit = 10
)

var codePattern = regexp.MustCompile(`^\d{16}$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ownerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type grantLookup interface {
	HasGrant(ctx context.Context, deviceID, recipientID uuid.UUID) (bool, error)
}

// CodeSource draws candidate device codes for bulk generation.
type CodeSource func() (string, error)

// RandomCodes draws uniformly random 16-digit codes.
func RandomCodes() (string, error) {
	return security.RandomDigits(CodeLength)
}

// Service is the device registry.
type Service interface {
	Create(ctx context.Context, actor rbac.Actor, input CreateInput) (*DeviceDTO, error)
	GenerateBulk(ctx context.Context, actor rbac.Actor, count int) (*BulkResult, error)
	Claim(ctx context.Context, actor rbac.Actor, code string, name *string) (*DeviceDTO, error)
	Reassign(ctx context.Context, actor rbac.Actor, code string, ownerID *uuid.UUID) (*DeviceDTO, error)
	ListOwned(ctx context.Context, actor rbac.Actor, userID uuid.UUID) ([]DeviceDTO, error)
	List(ctx context.Context, actor rbac.Actor) ([]DeviceDTO, error)
	Get(ctx context.Context, actor rbac.Actor, code string) (*DeviceDTO, error)
	QRImage(ctx context.Context, actor rbac.Actor, code string) ([]byte, error)
	Delete(ctx context.Context, actor rbac.Actor, code string) error
	UpdateM2M(ctx context.Context, actor rbac.Actor, code, number string) (*DeviceDTO, error)
	Visible(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID) (*models.Device, error)
	Counts(ctx context.Context) (Counts, error)
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Owners  ownerLookup
	Grants  grantLookup
	QR      qr.Encoder
	Codes   CodeSource
	Metrics *metrics.DomainMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	owners  ownerLookup
	grants  grantLookup
	qr      qr.Encoder
	codes   CodeSource
	metrics *metrics.DomainMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the device registry.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "devices repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Owners == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "owner lookup required")
	}
	if params.Grants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "grant lookup required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	encoder := params.QR
	if encoder == nil {
		encoder = qr.NewPNGEncoder(qr.DefaultSizePx)
	}
	codes := params.Codes
	if codes == nil {
		codes = RandomCodes
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		owners:  params.Owners,
		grants:  params.Grants,
		qr:      encoder,
		codes:   codes,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor rbac.Actor, input CreateInput) (*DeviceDTO, error) {
	if err := requireElevated(actor); err != nil {
		return nil, err
	}
	code := strings.TrimSpace(input.Code)
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidCode
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device name is required")
	}

	exists, err := s.repo.CodeExists(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check device code")
	}
	if exists {
		return nil, ErrDuplicateCode
	}
	if input.OwnerID != nil {
		if err := s.ensureOwner(ctx, *input.OwnerID); err != nil {
			return nil, err
		}
	}

	png, err := s.qr.Encode(code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr code")
	}
	device := &models.Device{
		Code:     code,
		Name:     name,
		QRCode:   png,
		IsActive: true,
	}
	if input.OwnerID != nil {
		at := s.now()
		owner := *input.OwnerID
		device.OwnerID = &owner
		device.AllocatedAt = &at
	}
	if err := s.repo.Create(ctx, device); err != nil {
		return nil, storageError(err, "create device")
	}

	s.metrics.Inc(metrics.EventDeviceCreated)
	ctx = s.logg.WithDeviceCode(ctx, code)
	s.logg.Info(ctx, "device created")
	return FromModel(device), nil
}

func (s *service) GenerateBulk(ctx context.Context, actor rbac.Actor, count int) (*BulkResult, error) {
	if err := requireElevated(actor); err != nil {
		return nil, err
	}
	if count < 1 || count > MaxBulkCount {
		return nil, ErrInvalidCount
	}

	result := &BulkResult{
		Devices:        make([]DeviceDTO, 0, count),
		TotalRequested: count,
	}
	var combined error
	fail := func(index int, err error) {
		result.Failures = append(result.Failures, BulkFailure{Index: index, Reason: err.Error()})
		combined = multierr.Append(combined, fmt.Errorf("unit %d: %w", index, err))
	}

	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk generation interrupted")
		}
		code, err := s.uniqueCode(ctx)
		if err != nil {
			fail(i, err)
			continue
		}
		png, err := s.qr.Encode(code)
		if err != nil {
			fail(i, fmt.Errorf("generate qr code: %w", err))
			continue
		}
		device := &models.Device{
			Code:     code,
			Name:     "Device " + code,
			QRCode:   png,
			IsActive: true,
		}
		if err := s.repo.Create(ctx, device); err != nil {
			fail(i, fmt.Errorf("insert device: %w", err))
			continue
		}
		result.Devices = append(result.Devices, *FromModel(device))
	}

	result.TotalGenerated = len(result.Devices)
	s.metrics.Add(metrics.EventBulkUnitCreated, result.TotalGenerated)
	s.metrics.Add(metrics.EventBulkUnitFailed, len(result.Failures))

	ctx = s.logg.WithFields(ctx, map[string]any{
		"requested": count,
		"generated": result.TotalGenerated,
		"failed":    len(result.Failures),
	})
	if combined != nil {
		ctx = s.logg.WithField(ctx, "failures", multierr.Errors(combined))
		s.logg.Warn(ctx, "bulk device generation finished with failures")
	} else {
		s.logg.Info(ctx, "bulk device generation finished")
	}
	return result, nil
}

func (s *service) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeAttemptLimit; attempt++ {
		code, err := s.codes()
		if err != nil {
			return "", fmt.Errorf("draw code: %w", err)
		}
		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no unique code after %d attempts", codeAttemptLimit)
}

func (s *service) Claim(ctx context.Context, actor rbac.Actor, code string, name *string) (*DeviceDTO, error) {
	if actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidCode
	}

	claimed, err := s.repo.Claim(ctx, ClaimParams{
		Code:    code,
		OwnerID: actor.ID,
		Name:    trimOptional(name),
		At:      s.now(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim device")
	}

	device, err := s.loadByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.metrics.Inc(metrics.EventDeviceClaimConflict)
		return nil, ErrAlreadyOwned
	}

	s.metrics.Inc(metrics.EventDeviceClaimed)
	ctx = s.logg.WithDeviceCode(ctx, code)
	s.logg.Info(ctx, "device claimed")
	return FromModel(device), nil
}

func (s *service) Reassign(ctx context.Context, actor rbac.Actor, code string, ownerID *uuid.UUID) (*DeviceDTO, error) {
	if err := requireElevated(actor); err != nil {
		return nil, err
	}
	if ownerID != nil && *ownerID == uuid.Nil {
		ownerID = nil
	}
	if ownerID != nil {
		if err := s.ensureOwner(ctx, *ownerID); err != nil {
			return nil, err
		}
	}

	var (
		updated *models.Device
		revoked int64
		prev    *uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		device, err := repo.FindByCode(ctx, strings.TrimSpace(code))
		if err != nil {
			if db.IsNotFound(err) {
				return ErrDeviceNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
		}
		prev = device.OwnerID

		if err := repo.SetOwner(ctx, device.ID, ownerID, s.now()); err != nil {
			return storageError(err, "reassign device")
		}
		if !sameOwner(prev, ownerID) {
			revoked, err = repo.DeleteGrants(ctx, device.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke grants")
			}
		}
		updated, err = repo.FindByID(ctx, device.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload device")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(metrics.EventDeviceReassigned)
	ctx = s.logg.WithDeviceCode(ctx, updated.Code)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"actor_id":       actor.ID.String(),
		"actor_role":     actor.Role.String(),
		"previous_owner": ownerString(prev),
		"new_owner":      ownerString(ownerID),
		"grants_revoked": revoked,
	})
	s.logg.Warn(ctx, "device ownership overwritten by admin")
	return FromModel(updated), nil
}

func (s *service) ListOwned(ctx context.Context, actor rbac.Actor, userID uuid.UUID) ([]DeviceDTO, error) {
	if !actor.Role.IsElevated() && !actor.IsSelf(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "access denied")
	}
	rows, err := s.repo.ListOwned(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list owned devices")
	}
	return fromModels(rows), nil
}

func (s *service) List(ctx context.Context, actor rbac.Actor) ([]DeviceDTO, error) {
	if !actor.Role.IsElevated() {
		return s.ListOwned(ctx, actor, actor.ID)
	}
	rows, err := s.repo.ListWithOwners(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}
	return fromRows(rows), nil
}

func (s *service) Get(ctx context.Context, actor rbac.Actor, code string) (*DeviceDTO, error) {
	device, err := s.visibleByCode(ctx, actor, code)
	if err != nil {
		return nil, err
	}
	return FromModel(device), nil
}

func (s *service) QRImage(ctx context.Context, actor rbac.Actor, code string) ([]byte, error) {
	device, err := s.visibleByCode(ctx, actor, code)
	if err != nil {
		return nil, err
	}
	if len(device.QRCode) == 0 {
		return nil, ErrQRUnavailable
	}
	return device.QRCode, nil
}

func (s *service) Delete(ctx context.Context, actor rbac.Actor, code string) error {
	if err := requireElevated(actor); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		device, err := repo.FindByCode(ctx, code)
		if err != nil {
			if db.IsNotFound(err) {
				return ErrDeviceNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
		}
		if err := repo.Delete(ctx, device.ID); err != nil {
			return storageError(err, "delete device")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(metrics.EventDeviceDeleted)
	ctx = s.logg.WithDeviceCode(ctx, code)
	s.logg.Info(ctx, "device deleted")
	return nil
}

func (s *service) UpdateM2M(ctx context.Context, actor rbac.Actor, code, number string) (*DeviceDTO, error) {
	if err := requireElevated(actor); err != nil {
		return nil, err
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "M2M number is required")
	}
	code = strings.TrimSpace(code)
	ok, err := s.repo.UpdateM2M(ctx, code, number)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update m2m number")
	}
	if !ok {
		return nil, ErrDeviceNotFound
	}
	device, err := s.loadByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return FromModel(device), nil
}

// Visible loads a device by id and applies the access check for actor.
func (s *service) Visible(ctx context.Context, actor rbac.Actor, deviceID uuid.UUID) (*models.Device, error) {
	device, err := s.repo.FindByID(ctx, deviceID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
	}
	if err := s.ensureVisible(ctx, actor, device); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *service) Counts(ctx context.Context) (Counts, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return Counts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count devices")
	}
	return counts, nil
}

func (s *service) visibleByCode(ctx context.Context, actor rbac.Actor, code string) (*models.Device, error) {
	device, err := s.loadByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, actor, device); err != nil {
		return nil, err
	}
	return device, nil
}

func (s *service) ensureVisible(ctx context.Context, actor rbac.Actor, device *models.Device) error {
	viewer := visibility.Viewer{ID: actor.ID, Role: actor.Role}
	return visibility.EnsureDeviceVisible(viewer, device, func(deviceID, recipientID uuid.UUID) (bool, error) {
		return s.grants.HasGrant(ctx, deviceID, recipientID)
	})
}

func (s *service) loadByCode(ctx context.Context, code string) (*models.Device, error) {
	device, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device")
	}
	return device, nil
}

func (s *service) ensureOwner(ctx context.Context, id uuid.UUID) error {
	if _, err := s.owners.FindByID(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return ErrUnknownOwner
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load owner")
	}
	return nil
}

func requireElevated(actor rbac.Actor) error {
	if !actor.Role.IsElevated() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin or superadmin privileges required")
	}
	return nil
}

func storageError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if db.IsNotFound(err) {
		return ErrDeviceNotFound
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func sameOwner(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func ownerString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
