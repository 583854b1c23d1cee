// Package service implements the access registry: who holds which role, and
// who may change that.
package service

import (
	"context"
	"log/slog"

	"aidtrace/internal/access/models"
	"aidtrace/internal/events"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
)

// Store persists role assignments. AddRole and RemoveRole report whether they
// changed anything.
type Store interface {
	Roles(ctx context.Context, identity domain.Identity) ([]models.Role, error)
	AddRole(ctx context.Context, identity domain.Identity, role models.Role) (bool, error)
	RemoveRole(ctx context.Context, identity domain.Identity, role models.Role) (bool, error)
}

// EventPublisher receives role events after the assignment is stored.
type EventPublisher interface {
	Publish(ctx context.Context, evts ...events.Event)
}

type Service struct {
	store     Store
	publisher EventPublisher
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasRole reports whether identity holds role.
func (s *Service) HasRole(ctx context.Context, identity domain.Identity, role models.Role) (bool, error) {
	roles, err := s.store.Roles(ctx, identity)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roles")
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// RolesOf lists identity's roles in administration order.
func (s *Service) RolesOf(ctx context.Context, identity domain.Identity) ([]models.Role, error) {
	roles, err := s.store.Roles(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roles")
	}
	return models.SortRoles(roles), nil
}

// Grant gives identity role. The caller must hold role's admin role.
// Granting a role already held is a no-op.
func (s *Service) Grant(ctx context.Context, caller domain.Identity, role models.Role, identity domain.Identity) error {
	if err := s.authorize(ctx, caller, role, identity); err != nil {
		return err
	}
	added, err := s.store.AddRole(ctx, identity, role)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}
	if added {
		s.emit(ctx, events.RoleGranted, caller, role, identity)
	}
	return nil
}

// Revoke removes role from identity. The caller must hold role's admin role.
// Revoking a role not held is a no-op.
func (s *Service) Revoke(ctx context.Context, caller domain.Identity, role models.Role, identity domain.Identity) error {
	if err := s.authorize(ctx, caller, role, identity); err != nil {
		return err
	}
	return s.remove(ctx, caller, role, identity)
}

// Renounce drops one of the caller's own roles.
func (s *Service) Renounce(ctx context.Context, caller domain.Identity, role models.Role) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "caller is required")
	}
	if !role.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", role)
	}
	return s.remove(ctx, caller, role, caller)
}

// Bootstrap grants SuperAdmin and Admin to root without an authorization check.
// It is safe to call on every start.
func (s *Service) Bootstrap(ctx context.Context, root domain.Identity) error {
	if root.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "root identity is required")
	}
	for _, role := range []models.Role{models.RoleSuperAdmin, models.RoleAdmin} {
		added, err := s.store.AddRole(ctx, root, role)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bootstrap root roles")
		}
		if added {
			s.logger.InfoContext(ctx, "bootstrapped root role", "identity", root, "role", role)
			s.emit(ctx, events.RoleGranted, root, role, root)
		}
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, caller domain.Identity, role models.Role, identity domain.Identity) error {
	if !role.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", role)
	}
	if identity.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	ok, err := s.HasRole(ctx, caller, role.AdminRole())
	if err != nil {
		return err
	}
	if !ok {
		s.logger.WarnContext(ctx, "role change denied",
			"caller", caller,
			"role", role,
			"identity", identity,
		)
		return dErrors.Newf(dErrors.CodeUnauthorized, "%s lacks %s required to administer %s", caller, role.AdminRole(), role)
	}
	return nil
}

func (s *Service) remove(ctx context.Context, caller domain.Identity, role models.Role, identity domain.Identity) error {
	removed, err := s.store.RemoveRole(ctx, identity, role)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
	}
	if removed {
		s.emit(ctx, events.RoleRevoked, caller, role, identity)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, t events.Type, actor domain.Identity, role models.Role, identity domain.Identity) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, events.New(ctx, t, "", actor, events.RoleChange{Role: role.String(), Identity: identity}))
}
