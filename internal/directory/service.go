package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/unipulse/unipulse/internal/scope"
)

// ErrNotLoaded indicates no snapshot has been loaded yet.
var ErrNotLoaded = errors.New("directory: table not loaded")

// Service serves scope-filtered views of the organisational hierarchy from
// an in-memory snapshot. Concurrent reload requests collapse into one
// storage round trip.
type Service struct {
	source   Source
	logger   *slog.Logger
	group    singleflight.Group
	snapshot atomic.Pointer[Table]
}

// NewService builds the directory service.
func NewService(source Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger}
}

// Reload loads a fresh snapshot and publishes it. Callers arriving while a
// reload is in flight share its result instead of stacking queries.
func (s *Service) Reload(ctx context.Context) (*Table, error) {
	resultChan := s.group.DoChan("reload", func() (any, error) {
		provinces, err := s.source.Provinces(ctx)
		if err != nil {
			return nil, err
		}
		universities, err := s.source.Universities(ctx)
		if err != nil {
			return nil, err
		}
		faculties, err := s.source.Faculties(ctx)
		if err != nil {
			return nil, err
		}
		table := newTable(provinces, universities, faculties)
		s.snapshot.Store(table)
		s.logger.Info("directory reloaded", slog.Int("rows", table.Size()))
		return table, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Table), nil
	}
}

// Table returns the current snapshot, loading one on first use.
func (s *Service) Table(ctx context.Context) (*Table, error) {
	if t := s.snapshot.Load(); t != nil {
		return t, nil
	}
	return s.Reload(ctx)
}

// Provinces lists the provinces visible under the given filter, ordered by
// collated name.
func (s *Service) Provinces(ctx context.Context, f scope.Filter) ([]Province, error) {
	t, err := s.Table(ctx)
	if err != nil {
		return nil, err
	}
	allowed, constrained := f.Values(scope.DimProvince)
	var out []Province
	for _, p := range t.provinces {
		if constrained && !contains(allowed, p.Code) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Universities lists the universities of one province visible under the
// filter. Both the province and university dimensions constrain the result.
func (s *Service) Universities(ctx context.Context, provinceCode string, f scope.Filter) ([]University, error) {
	t, err := s.Table(ctx)
	if err != nil {
		return nil, err
	}
	if provinces, constrained := f.Values(scope.DimProvince); constrained && !contains(provinces, provinceCode) {
		return nil, nil
	}
	allowed, constrained := f.Values(scope.DimUniversity)
	var out []University
	for _, u := range t.universitiesIn[provinceCode] {
		if constrained && !contains(allowed, u.Code) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// Faculties lists the faculties of one university visible under the filter.
func (s *Service) Faculties(ctx context.Context, universityCode string, f scope.Filter) ([]Faculty, error) {
	t, err := s.Table(ctx)
	if err != nil {
		return nil, err
	}
	if universities, constrained := f.Values(scope.DimUniversity); constrained && !contains(universities, universityCode) {
		return nil, nil
	}
	allowed, constrained := f.Values(scope.DimFaculty)
	var out []Faculty
	for _, fac := range t.facultiesIn[universityCode] {
		if constrained && !contains(allowed, fac.Code) {
			continue
		}
		out = append(out, fac)
	}
	return out, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
