package access

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unipulse/unipulse/internal/audit"
	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
)

// OverrideStore reads per-principal resource overrides.
type OverrideStore interface {
	Override(ctx context.Context, principalID int64, resourceID string) (*Override, error)
}

// DecisionRecorder appends access decisions to the audit sink.
type DecisionRecorder interface {
	RecordAccess(ctx context.Context, entry audit.AccessEntry) error
}

// Registry evaluates principals against the declared resource rules.
type Registry struct {
	descriptors map[string]ResourceDescriptor
	overrides   OverrideStore
	recorder    DecisionRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewRegistry builds a registry over the startup-loaded descriptor set.
func NewRegistry(descriptors []ResourceDescriptor, overrides OverrideStore, recorder DecisionRecorder, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	table := make(map[string]ResourceDescriptor, len(descriptors))
	for _, d := range descriptors {
		table[d.ID] = d
	}
	return &Registry{
		descriptors: table,
		overrides:   overrides,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// Descriptor exposes a declared resource by id.
func (g *Registry) Descriptor(resourceID string) (ResourceDescriptor, bool) {
	d, ok := g.descriptors[resourceID]
	return d, ok
}

// CheckAccess decides whether the principal may see the resource and under
// which row filter. Every branch, grant or deny, emits exactly one audit
// entry. Storage errors propagate to the caller and never grant access.
func (g *Registry) CheckAccess(ctx context.Context, principalID int64, resourceID string, pc scope.PrincipalContext) (Decision, error) {
	descriptor, ok := g.descriptors[resourceID]
	if !ok {
		return g.deny(ctx, principalID, resourceID, shared.ReasonNotFound), nil
	}

	if descriptor.Public {
		return g.allow(ctx, principalID, resourceID, pc.Scope), nil
	}

	if !pc.EffectiveLevel.AtLeast(descriptor.MinLevel) {
		return g.deny(ctx, principalID, resourceID, shared.ReasonInsufficientRole), nil
	}

	override, err := g.overrides.Override(ctx, principalID, resourceID)
	if err != nil {
		return Decision{}, err
	}
	if override == nil {
		return g.allow(ctx, principalID, resourceID, pc.Scope), nil
	}
	if !override.CanAccess {
		return g.deny(ctx, principalID, resourceID, shared.ReasonRevoked), nil
	}
	if outsideWindow(override, g.now()) {
		return g.deny(ctx, principalID, resourceID, shared.ReasonOutsideWindow), nil
	}
	return g.allow(ctx, principalID, resourceID, scope.Intersect(pc.Scope, override.Restrictions)), nil
}

// DenyMisconfigured records and returns the deny-by-default decision used
// when the principal's role data could not be resolved.
func (g *Registry) DenyMisconfigured(ctx context.Context, principalID int64, resourceID string) Decision {
	return g.deny(ctx, principalID, resourceID, shared.ReasonMisconfigured)
}

// VisibleResources evaluates every declared resource for the principal and
// returns the granted decisions, ordered by resource id. Lookups fan out
// concurrently; each one still writes its own audit entry.
func (g *Registry) VisibleResources(ctx context.Context, principalID int64, pc scope.PrincipalContext) ([]Decision, error) {
	var (
		mu      sync.Mutex
		visible []Decision
	)
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(8)
	for id := range g.descriptors {
		grp.Go(func() error {
			decision, err := g.CheckAccess(grpCtx, principalID, id, pc)
			if err != nil {
				return err
			}
			if decision.Allowed {
				mu.Lock()
				visible = append(visible, decision)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].ResourceID < visible[j].ResourceID })
	return visible, nil
}

func (g *Registry) allow(ctx context.Context, principalID int64, resourceID string, filter scope.Filter) Decision {
	decision := Allow(resourceID, filter)
	g.record(ctx, principalID, decision)
	return decision
}

func (g *Registry) deny(ctx context.Context, principalID int64, resourceID string, reason shared.Reason) Decision {
	decision := Deny(resourceID, reason)
	g.record(ctx, principalID, decision)
	return decision
}

func (g *Registry) record(ctx context.Context, principalID int64, decision Decision) {
	entry := audit.AccessEntry{
		PrincipalID: principalID,
		ResourceID:  decision.ResourceID,
		Granted:     decision.Allowed,
		Reason:      decision.Reason,
		At:          g.now(),
	}
	if decision.Allowed {
		entry.Filters = decision.Filter.Map()
	}
	if err := g.recorder.RecordAccess(ctx, entry); err != nil {
		g.logger.Error("record access decision",
			slog.String("resource", decision.ResourceID),
			slog.Any("error", err),
		)
	}
}

func outsideWindow(o *Override, now time.Time) bool {
	if o.DateFrom != nil && now.Before(*o.DateFrom) {
		return true
	}
	if o.DateTo != nil && now.After(*o.DateTo) {
		return true
	}
	return false
}
