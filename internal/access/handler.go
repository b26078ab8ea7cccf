package access

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unipulse/unipulse/internal/platform/httpx"
	"github.com/unipulse/unipulse/internal/scope"
	"github.com/unipulse/unipulse/internal/shared"
)

// Handler exposes the access engine over JSON endpoints. Decisions come
// back with reason codes; translating them to user-facing text is the web
// frontend's concern.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
	service  *Service
}

// NewHandler constructs the access handler.
func NewHandler(logger *slog.Logger, registry *Registry, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, registry: registry, service: service}
}

// MountRoutes registers the access endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/resources", h.handleVisible)
	r.Get("/resources/{resourceID}/access", h.handleCheck)
	r.Post("/overrides", h.handleGrant)
	r.Get("/overrides/{principalID}", h.handleListOverrides)
	r.Delete("/overrides/{principalID}/{resourceID}", h.handleRevoke)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	resourceID := chi.URLParam(r, "resourceID")
	if principal.Misconfigured {
		decision := h.registry.DenyMisconfigured(r.Context(), principal.UserID, resourceID)
		httpx.JSON(w, http.StatusOK, toDecisionResponse(decision))
		return
	}
	decision, err := h.registry.CheckAccess(r.Context(), principal.UserID, resourceID, principal.Context)
	if err != nil {
		h.logger.Error("check access", slog.String("resource", resourceID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDecisionResponse(decision))
}

func (h *Handler) handleVisible(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if principal.Misconfigured {
		httpx.JSON(w, http.StatusOK, []DecisionResponse{})
		return
	}
	decisions, err := h.registry.VisibleResources(r.Context(), principal.UserID, principal.Context)
	if err != nil {
		h.logger.Error("visible resources", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]DecisionResponse, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, toDecisionResponse(d))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}
	var req GrantOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	override, err := h.service.GrantOverride(r.Context(), req, admin.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("grant override", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Invalid Grant", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, override)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	resourceID := chi.URLParam(r, "resourceID")
	if err := h.service.RevokeOverride(r.Context(), principalID, resourceID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("revoke override", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	principalID, err := strconv.ParseInt(chi.URLParam(r, "principalID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	overrides, err := h.service.ListOverrides(r.Context(), principalID)
	if err != nil {
		h.logger.Error("list overrides", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overrides)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*shared.Principal, bool) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	if principal.Misconfigured || !principal.Context.EffectiveLevel.AtLeast(scope.LevelAdmin) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return principal, true
}
