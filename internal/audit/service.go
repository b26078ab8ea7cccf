package audit

import (
	"context"
	"fmt"
	"time"
)

// TimelineRepository provides windowed reads over the two log tables.
type TimelineRepository interface {
	AccessWindow(ctx context.Context, params WindowParams) ([]TimelineRow, error)
	SurveyWindow(ctx context.Context, params WindowParams) ([]TimelineRow, error)
}

// Service coordinates timeline reads with paging.
type Service struct {
	repo TimelineRepository
}

// NewService builds the audit timeline service.
func NewService(repo TimelineRepository) *Service {
	return &Service{repo: repo}
}

// AccessTimeline pages through resource access decisions.
func (s *Service) AccessTimeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	return s.timeline(ctx, filters, func(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
		return s.repo.AccessWindow(ctx, p)
	})
}

// SurveyTimeline pages through survey decisions.
func (s *Service) SurveyTimeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	return s.timeline(ctx, filters, func(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
		return s.repo.SurveyWindow(ctx, p)
	})
}

func (s *Service) timeline(ctx context.Context, filters TimelineFilters, window func(context.Context, WindowParams) ([]TimelineRow, error)) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	params := WindowParams{
		From:    optionalTime(filters.From),
		To:      optionalTime(filters.To),
		Subject: filters.Subject,
		Granted: filters.Granted,
		Offset:  (page - 1) * pageSize,
		Limit:   pageSize + 1,
	}
	rows, err := window(ctx, params)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// exportLimit caps a single CSV download. Larger extractions go through the
// retention tooling, not the HTTP surface.
const exportLimit = 5000

// AccessExport returns the filtered access rows for a CSV download.
func (s *Service) AccessExport(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return s.export(ctx, filters, func(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
		return s.repo.AccessWindow(ctx, p)
	})
}

// SurveyExport returns the filtered survey rows for a CSV download.
func (s *Service) SurveyExport(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	return s.export(ctx, filters, func(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
		return s.repo.SurveyWindow(ctx, p)
	})
}

func (s *Service) export(ctx context.Context, filters TimelineFilters, window func(context.Context, WindowParams) ([]TimelineRow, error)) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	params := WindowParams{
		From:    optionalTime(filters.From),
		To:      optionalTime(filters.To),
		Subject: filters.Subject,
		Granted: filters.Granted,
		Limit:   exportLimit,
	}
	return window(ctx, params)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
