package users

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/db"
	"github.com/sensorgrid/devicehub-backend/pkg/db/models"
	"github.com/sensorgrid/devicehub-backend/pkg/enums"
	pkgerrors "github.com/sensorgrid/devicehub-backend/pkg/errors"
	"github.com/sensorgrid/devicehub-backend/pkg/phone"
	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

type usersRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, roles ...enums.Role) ([]models.User, error)
	ListCustomersExcept(ctx context.Context, excludeID uuid.UUID) ([]models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role enums.Role) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service is the admin user-management surface.
type Service interface {
	CreateUser(ctx context.Context, actor rbac.Actor, input CreateUserInput) (*UserDTO, error)
	ListUsers(ctx context.Context, actor rbac.Actor) ([]UserDTO, error)
	ChangeRole(ctx context.Context, actor rbac.Actor, targetID uuid.UUID, role string) (*UserDTO, error)
	DeleteUser(ctx context.Context, actor rbac.Actor, targetID uuid.UUID) error
	Profile(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	ListShareableCustomers(ctx context.Context, actor rbac.Actor) ([]CustomerDTO, error)
}

type service struct {
	repo usersRepository
}

// NewService wires the users service.
func NewService(repo usersRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) CreateUser(ctx context.Context, actor rbac.Actor, input CreateUserInput) (*UserDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	normalized, err := phone.Normalize(input.Phone)
	if err != nil {
		return nil, err
	}

	role := enums.RoleCustomer
	if raw := strings.TrimSpace(input.Role); raw != "" {
		parsed, err := enums.ParseRole(raw)
		if err != nil {
			return nil, ErrInvalidRole
		}
		role = parsed
	}
	if !rbac.CanCreate(actor.Role, role) {
		if actor.Role == enums.RoleSuperadmin && role == enums.RoleSuperadmin {
			return nil, ErrInvalidRole
		}
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to create users with this role")
	}

	user := &models.User{
		Name:  name,
		Phone: normalized,
		Email: trimOptional(input.Email),
		Role:  role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return FromModel(user), nil
}

func (s *service) ListUsers(ctx context.Context, actor rbac.Actor) ([]UserDTO, error) {
	var visible []enums.Role
	for _, role := range enums.Roles() {
		if rbac.CanViewRole(actor.Role, role) {
			visible = append(visible, role)
		}
	}
	if len(visible) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role")
	}

	rows, err := s.repo.List(ctx, visible...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return fromModels(rows), nil
}

func (s *service) ChangeRole(ctx context.Context, actor rbac.Actor, targetID uuid.UUID, raw string) (*UserDTO, error) {
	if !rbac.CanChangeRole(actor.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only superadmins can change roles")
	}
	role, err := enums.ParseRole(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidRole
	}
	if actor.IsSelf(targetID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot change your own role")
	}

	target, err := s.loadUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdateRole(ctx, targetID, role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	if !updated {
		return nil, ErrUserNotFound
	}
	target.Role = role
	return FromModel(target), nil
}

func (s *service) DeleteUser(ctx context.Context, actor rbac.Actor, targetID uuid.UUID) error {
	if actor.IsSelf(targetID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete your own account")
	}
	target, err := s.loadUser(ctx, targetID)
	if err != nil {
		return err
	}
	if !rbac.CanDelete(actor.Role, target.Role) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to delete this user")
	}
	if err := s.repo.Delete(ctx, targetID); err != nil {
		if db.IsNotFound(err) {
			return ErrUserNotFound
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	return nil
}

func (s *service) Profile(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) ListShareableCustomers(ctx context.Context, actor rbac.Actor) ([]CustomerDTO, error) {
	rows, err := s.repo.ListCustomersExcept(ctx, actor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}
	out := make([]CustomerDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, CustomerDTO{ID: row.ID, Name: row.Name, Phone: row.Phone})
	}
	return out, nil
}

func (s *service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
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
