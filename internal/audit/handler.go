package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unipulse/unipulse/internal/platform/httpx"
	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
)

// Handler exposes the decision timelines to administrators.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the audit endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/access", h.handleAccessTimeline)
	r.Get("/access/export", h.handleAccessExport)
	r.Get("/surveys", h.handleSurveyTimeline)
	r.Get("/surveys/export", h.handleSurveyExport)
}

type timelineRowResponse struct {
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"`
	Principal string    `json:"principal"`
	Subject   string    `json:"subject"`
	Granted   bool      `json:"granted"`
	Reason    string    `json:"reason,omitempty"`
	Event     string    `json:"event,omitempty"`
}

type timelineResponse struct {
	Rows   []timelineRowResponse `json:"rows"`
	Paging PagingInfo            `json:"paging"`
}

func (h *Handler) handleAccessTimeline(w http.ResponseWriter, r *http.Request) {
	h.handleTimeline(w, r, h.service.AccessTimeline)
}

func (h *Handler) handleSurveyTimeline(w http.ResponseWriter, r *http.Request) {
	h.handleTimeline(w, r, h.service.SurveyTimeline)
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request, timeline func(context.Context, TimelineFilters) (Result, error)) {
	if !h.requireAdmin(w, r) {
		return
	}
	filters, err := parseTimelineFilters(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	result, err := timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("timeline query", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rows := make([]timelineRowResponse, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, timelineRowResponse{
			At:        row.At,
			Kind:      row.Kind,
			Principal: row.Principal,
			Subject:   row.Subject,
			Granted:   row.Granted,
			Reason:    row.Reason,
			Event:     row.Event,
		})
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{Rows: rows, Paging: result.Paging})
}

func (h *Handler) handleAccessExport(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, h.service.AccessExport, "access_log.csv")
}

func (h *Handler) handleSurveyExport(w http.ResponseWriter, r *http.Request) {
	h.handleExport(w, r, h.service.SurveyExport, "survey_log.csv")
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, export func(context.Context, TimelineFilters) ([]TimelineRow, error), filename string) {
	if !h.requireAdmin(w, r) {
		return
	}
	filters, err := parseTimelineFilters(r)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	rows, err := export(r.Context(), filters)
	if err != nil {
		h.logger.Error("timeline export", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	_ = writer.Write([]string{"At", "Kind", "Principal", "Subject", "Granted", "Reason", "Event"})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.At.UTC().Format(time.RFC3339),
			row.Kind,
			row.Principal,
			row.Subject,
			strconv.FormatBool(row.Granted),
			row.Reason,
			row.Event,
		})
	}
	writer.Flush()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	_, _ = w.Write(buf.Bytes())
}

func parseTimelineFilters(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	var filters TimelineFilters
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, err
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filters, err
		}
		filters.To = t
	}
	filters.Subject = q.Get("subject")
	if v := q.Get("granted"); v != "" {
		granted, err := strconv.ParseBool(v)
		if err != nil {
			return filters, err
		}
		filters.Granted = &granted
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return filters, err
		}
		filters.Page = page
	}
	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return filters, err
		}
		filters.PageSize = size
	}
	return filters, nil
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return false
	}
	if principal.Misconfigured || !principal.Context.EffectiveLevel.AtLeast(scope.LevelAdmin) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return false
	}
	return true
}
