package survey

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unipulse/unipulse/internal/platform/httpx"
	"github.com/unipulse/unipulse/internal/shared"
)

// Handler exposes survey eligibility and response endpoints. Anonymous
// visitors are served too: the session's anonymous token stands in for an
// identity on anonymous-access surveys.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the survey handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the survey endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/surveys/{surveyID}/eligibility", h.handleEligibility)
	r.Post("/surveys/{surveyID}/responses", h.handleStart)
	r.Post("/surveys/{surveyID}/responses/{responseID}/complete", h.handleComplete)
}

type accessRequest struct {
	Password string `json:"password"`
}

type eligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

type startResponse struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	ResponseID int64  `json:"response_id,omitempty"`
	Resumed    bool   `json:"resumed,omitempty"`
}

func (h *Handler) handleEligibility(w http.ResponseWriter, r *http.Request) {
	surveyID, req, respondent, ok := h.parseAccess(w, r)
	if !ok {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if principal != nil && principal.Misconfigured {
		eligibility := h.service.DenyMisconfigured(r.Context(), surveyID, respondent)
		httpx.JSON(w, http.StatusOK, eligibilityResponse{Eligible: false, Reason: string(eligibility.Reason)})
		return
	}
	eligibility, err := h.service.Evaluate(r.Context(), surveyID, respondent, req.Password)
	if err != nil {
		h.respondServiceError(w, "evaluate survey", err)
		return
	}
	httpx.JSON(w, http.StatusOK, eligibilityResponse{
		Eligible: eligibility.Eligible,
		Reason:   string(eligibility.Reason),
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	surveyID, req, respondent, ok := h.parseAccess(w, r)
	if !ok {
		return
	}
	principal := shared.PrincipalFromContext(r.Context())
	if principal != nil && principal.Misconfigured {
		eligibility := h.service.DenyMisconfigured(r.Context(), surveyID, respondent)
		httpx.JSON(w, http.StatusOK, startResponse{Allowed: false, Reason: string(eligibility.Reason)})
		return
	}
	decision, err := h.service.StartOrResume(r.Context(), surveyID, respondent, req.Password)
	if err != nil {
		h.respondServiceError(w, "start survey response", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStartResponse(decision))
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	surveyID, _, respondent, ok := h.parseAccess(w, r)
	if !ok {
		return
	}
	responseID, err := strconv.ParseInt(chi.URLParam(r, "responseID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	decision, err := h.service.Complete(r.Context(), surveyID, responseID, respondent)
	if err != nil {
		h.respondServiceError(w, "complete survey response", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStartResponse(decision))
}

func (h *Handler) parseAccess(w http.ResponseWriter, r *http.Request) (int64, accessRequest, Respondent, bool) {
	surveyID, err := strconv.ParseInt(chi.URLParam(r, "surveyID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, accessRequest{}, Respondent{}, false
	}
	var req accessRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, httpx.ErrValidation)
			return 0, accessRequest{}, Respondent{}, false
		}
	}
	return surveyID, req, h.respondent(r), true
}

// respondent derives the answering identity from the request: the resolved
// principal when authenticated, otherwise the session's anonymous token.
func (h *Handler) respondent(r *http.Request) Respondent {
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		return Respondent{
			NationalID: principal.Context.NationalID,
			Roles:      principal.Assignments,
		}
	}
	respondent := Respondent{Anonymous: true}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		respondent.AnonToken = sess.AnonToken()
	}
	return respondent
}

func (h *Handler) respondServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrSubmissionConflict):
		httpx.RespondError(w, httpx.ErrConflict)
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toStartResponse(d StartDecision) startResponse {
	return startResponse{
		Allowed:    d.Allowed,
		Reason:     string(d.Reason),
		ResponseID: d.ResponseID,
		Resumed:    d.Resumed,
	}
}
