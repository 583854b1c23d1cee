package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aidtrace/internal/access/models"
	"aidtrace/pkg/domain"
	dErrors "aidtrace/pkg/domain-errors"
	"aidtrace/pkg/platform/httputil"
	"aidtrace/pkg/requestcontext"
)

// Service defines the role registry operations exposed over HTTP.
type Service interface {
	RolesOf(ctx context.Context, identity domain.Identity) ([]models.Role, error)
	Grant(ctx context.Context, caller domain.Identity, role models.Role, identity domain.Identity) error
	Revoke(ctx context.Context, caller domain.Identity, role models.Role, identity domain.Identity) error
	Renounce(ctx context.Context, caller domain.Identity, role models.Role) error
}

// Handler serves role membership endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the role routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/identities/{identity}/roles", h.HandleRoles)
	r.Post("/roles/{role}/members", h.HandleGrant)
	r.Delete("/roles/{role}/members/me", h.HandleRenounce)
	r.Delete("/roles/{role}/members/{identity}", h.HandleRevoke)
}

// GrantRequest is the body of POST /v1/roles/{role}/members.
type GrantRequest struct {
	Identity string `json:"identity"`

	parsed domain.Identity
}

func (r *GrantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	id, err := domain.ParseIdentity(strings.TrimSpace(r.Identity))
	if err != nil {
		return err
	}
	r.parsed = id
	return nil
}

// RolesResponse lists the roles one identity holds.
type RolesResponse struct {
	Identity domain.Identity `json:"identity"`
	Roles    []models.Role   `json:"roles"`
}

func (h *Handler) HandleRoles(w http.ResponseWriter, r *http.Request) {
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	roles, err := h.service.RolesOf(r.Context(), identity)
	if err != nil {
		h.fail(w, r, "list roles failed", err)
		return
	}
	if roles == nil {
		roles = []models.Role{}
	}
	httputil.WriteJSON(w, http.StatusOK, RolesResponse{Identity: identity, Roles: roles})
}

// HandleGrant handles POST /v1/roles/{role}/members.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, role, ok := h.callerAndRole(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GrantRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.Grant(ctx, caller, role, req.parsed); err != nil {
		h.fail(w, r, "grant role failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRevoke handles DELETE /v1/roles/{role}/members/{identity}.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	caller, role, ok := h.callerAndRole(w, r)
	if !ok {
		return
	}
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Revoke(r.Context(), caller, role, identity); err != nil {
		h.fail(w, r, "revoke role failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRenounce handles DELETE /v1/roles/{role}/members/me.
func (h *Handler) HandleRenounce(w http.ResponseWriter, r *http.Request) {
	caller, role, ok := h.callerAndRole(w, r)
	if !ok {
		return
	}
	if err := h.service.Renounce(r.Context(), caller, role); err != nil {
		h.fail(w, r, "renounce role failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) callerAndRole(w http.ResponseWriter, r *http.Request) (domain.Identity, models.Role, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
		return "", "", false
	}
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error()))
		return "", "", false
	}
	return caller, role, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx),
		"role", chi.URLParam(r, "role"),
		"error", err,
	)
	httputil.WriteError(w, err)
}
