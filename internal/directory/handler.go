package directory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unipulse/unipulse/internal/platform/httpx"
	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
)

// Handler serves scope-filtered hierarchy listings. Every response is cut
// down to what the caller's resolved scope lets them see.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the directory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the directory endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/provinces", h.handleProvinces)
	r.Get("/provinces/{provinceCode}/universities", h.handleUniversities)
	r.Get("/universities/{universityCode}/faculties", h.handleFaculties)
	r.Post("/reload", h.handleReload)
}

type provinceResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type universityResponse struct {
	Code         string `json:"code"`
	ProvinceCode string `json:"province_code"`
	Name         string `json:"name"`
}

type facultyResponse struct {
	Code           string `json:"code"`
	UniversityCode string `json:"university_code"`
	Name           string `json:"name"`
}

func (h *Handler) handleProvinces(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	provinces, err := h.service.Provinces(r.Context(), principal.Context.Scope)
	if err != nil {
		h.logger.Error("list provinces", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]provinceResponse, 0, len(provinces))
	for _, p := range provinces {
		out = append(out, provinceResponse{Code: p.Code, Name: p.Name})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleUniversities(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "provinceCode")
	universities, err := h.service.Universities(r.Context(), code, principal.Context.Scope)
	if err != nil {
		h.logger.Error("list universities", slog.String("province", code), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]universityResponse, 0, len(universities))
	for _, u := range universities {
		out = append(out, universityResponse{Code: u.Code, ProvinceCode: u.ProvinceCode, Name: u.Name})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleFaculties(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "universityCode")
	faculties, err := h.service.Faculties(r.Context(), code, principal.Context.Scope)
	if err != nil {
		h.logger.Error("list faculties", slog.String("university", code), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]facultyResponse, 0, len(faculties))
	for _, f := range faculties {
		out = append(out, facultyResponse{Code: f.Code, UniversityCode: f.UniversityCode, Name: f.Name})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	if !principal.Context.EffectiveLevel.AtLeast(scope.LevelAdmin) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	table, err := h.service.Reload(r.Context())
	if err != nil {
		h.logger.Error("reload directory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"entries": table.Size()})
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, r *http.Request) (*shared.Principal, bool) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	if principal.Misconfigured {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return principal, true
}
