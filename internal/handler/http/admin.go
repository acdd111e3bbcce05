package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/WajidAliShah2004/slack-bot/internal/service"
	"github.com/WajidAliShah2004/slack-bot/pkg/httputil"
	"github.com/WajidAliShah2004/slack-bot/pkg/validator"
)

// AdminHandler handles account revocation and permission management. All
// routes are mounted behind the admin permission.
type AdminHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.AuthService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, logger: logger}
}

// GrantPermissionRequest is the JSON request body for granting a permission.
type GrantPermissionRequest struct {
	Name      string     `json:"name" validate:"required,min=1,max=128"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// RevokeUserRequest is the optional JSON request body for account revocation.
type RevokeUserRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=512"`
}

// RevokeUser handles POST /api/v1/admin/users/{id}/revoke. Revoking an
// already-revoked account succeeds without effect.
func (h *AdminHandler) RevokeUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	admin, _ := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	// Body is optional; a missing or empty body means no recorded reason.
	var req RevokeUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	revokedBy := ""
	if admin != nil {
		revokedBy = admin.ID
	}

	if err := h.service.Revoke(r.Context(), userID, revokedBy, req.Reason); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "revoked"}})
}

// GrantPermission handles POST /api/v1/admin/users/{id}/permissions.
func (h *AdminHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	admin, _ := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req GrantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	grantedBy := ""
	if admin != nil {
		grantedBy = admin.ID
	}

	if err := h.service.GrantPermission(r.Context(), userID, req.Name, grantedBy, req.ExpiresAt); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: map[string]string{"status": "granted"}})
}

// RevokePermission handles DELETE /api/v1/admin/users/{id}/permissions/{name}.
func (h *AdminHandler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	if err := h.service.RevokePermission(r.Context(), userID, name); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "permission_revoked"}})
}
