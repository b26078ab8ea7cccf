package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

// OverrideAdminStore mutates override records.
type OverrideAdminStore interface {
	UpsertOverride(ctx context.Context, o Override) (Override, error)
	DeleteOverride(ctx context.Context, principalID int64, resourceID string) error
	ListOverrides(ctx context.Context, principalID int64) ([]Override, error)
}

// Service owns the administrator-facing override lifecycle. Overrides are
// only ever mutated through these grant/revoke operations.
type Service struct {
	store    OverrideAdminStore
	registry *Registry
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs the override admin service.
func NewService(store OverrideAdminStore, registry *Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		registry: registry,
		validate: validator.New(),
		logger:   logger,
	}
}

// GrantOverride validates and persists an override grant.
func (s *Service) GrantOverride(ctx context.Context, req GrantOverrideRequest, grantedBy int64) (Override, error) {
	if err := s.validate.Struct(req); err != nil {
		return Override{}, fmt.Errorf("access: invalid grant: %w", err)
	}
	if _, ok := s.registry.Descriptor(req.ResourceID); !ok {
		return Override{}, fmt.Errorf("access: unknown resource %q: %w", req.ResourceID, ErrNotFound)
	}
	override := Override{
		PrincipalID:  req.PrincipalID,
		ResourceID:   req.ResourceID,
		CanAccess:    *req.CanAccess,
		Restrictions: req.filter(),
		DateFrom:     req.DateFrom,
		DateTo:       req.DateTo,
		GrantedBy:    grantedBy,
	}
	stored, err := s.store.UpsertOverride(ctx, override)
	if err != nil {
		return Override{}, err
	}
	s.logger.Info("override granted",
		slog.Int64("principal", stored.PrincipalID),
		slog.String("resource", stored.ResourceID),
		slog.Bool("can_access", stored.CanAccess),
	)
	return stored, nil
}

// RevokeOverride deletes an override grant.
func (s *Service) RevokeOverride(ctx context.Context, principalID int64, resourceID string) error {
	if err := s.store.DeleteOverride(ctx, principalID, resourceID); err != nil {
		return err
	}
	s.logger.Info("override revoked",
		slog.Int64("principal", principalID),
		slog.String("resource", resourceID),
	)
	return nil
}

// ListOverrides returns a principal's overrides for the admin screen.
func (s *Service) ListOverrides(ctx context.Context, principalID int64) ([]Override, error) {
	return s.store.ListOverrides(ctx, principalID)
}
