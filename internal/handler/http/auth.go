// Package http exposes the service over HTTP using chi.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	"github.com/WajidAliShah2004/slack-bot/internal/service"
	"github.com/WajidAliShah2004/slack-bot/pkg/httputil"
	"github.com/WajidAliShah2004/slack-bot/pkg/validator"
)

// AuthHandler handles the login round trip and session endpoints.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger

	// frontendURL is where the browser lands after the callback.
	frontendURL string
	// cookieTTL matches the session token lifetime.
	cookieTTL time.Duration
	// cookieSecure is false only in development over plain HTTP.
	cookieSecure bool
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, frontendURL string, cookieTTL time.Duration, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      svc,
		logger:       logger,
		frontendURL:  frontendURL,
		cookieTTL:    cookieTTL,
		cookieSecure: cookieSecure,
	}
}

// --- Request/Response DTOs ---

// CheckPermissionRequest is the JSON request body for a permission check.
type CheckPermissionRequest struct {
	Permission string `json:"permission" validate:"required,min=1,max=128"`
}

// CheckPermissionResponse reports a permission decision.
type CheckPermissionResponse struct {
	Permission    string `json:"permission"`
	HasPermission bool   `json:"has_permission"`
}

// TokenResponse carries a freshly issued session token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileResponse is the authenticated user's own view of their account.
type ProfileResponse struct {
	User        *domain.User `json:"user"`
	Permissions []string     `json:"permissions"`
}

// LoginResponse carries the provider authorization URL and the state value
// bound to it.
type LoginResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// --- Handlers ---

// Login handles GET /api/v1/auth/login. It stores a single-use state value
// (caller-supplied via ?state=, or freshly generated) and returns the
// provider authorization URL. With ?redirect=true the browser is sent there
// directly.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := h.service.BeginLogin(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, authURL, http.StatusFound)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: LoginResponse{AuthURL: authURL, State: state},
	})
}

// Callback handles GET /api/v1/auth/callback, the provider redirect target.
// On success it sets the session cookie and sends the browser to the
// frontend; on failure it redirects with a coarse error code. The provider's
// own error detail never reaches the browser.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := service.CallbackInput{
		Code:          q.Get("code"),
		State:         q.Get("state"),
		ProviderError: q.Get("error"),
	}

	result, err := h.service.CompleteLogin(r.Context(), in)
	if err != nil {
		h.redirectWithError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.Token, h.cookieTTL))
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// Refresh handles POST /api/v1/auth/refresh. Session middleware has already
// re-checked the account, so a revoked user can never reach this point.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	tokenString, err := h.service.Refresh(r.Context(), user)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, h.sessionCookie(tokenString, h.cookieTTL))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: TokenResponse{Token: tokenString, ExpiresAt: time.Now().UTC().Add(h.cookieTTL)},
	})
}

// Logout handles POST /api/v1/auth/logout. It clears the cookie and stamps
// the logout; outstanding tokens expire on their own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	http.SetCookie(w, h.sessionCookie("", -time.Hour))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "logged_out"}})
}

// Me handles GET /api/v1/users/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	permissions, err := h.service.ListPermissions(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: ProfileResponse{User: user, Permissions: permissions},
	})
}

// CheckPermission handles POST /api/v1/auth/permissions/check. The decision
// is reported, not enforced: an absent grant is a 200 with allowed=false.
func (h *AuthHandler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CheckPermissionRequest
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

	allowed, err := h.service.HasPermission(r.Context(), user.ID, req.Permission)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: CheckPermissionResponse{Permission: req.Permission, HasPermission: allowed},
	})
}

// --- Helpers ---

func (h *AuthHandler) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}

// redirectWithError maps a callback failure to a coarse error code in the
// frontend redirect.
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := "login_failed"
	switch {
	case errors.Is(err, domain.ErrProviderDenied):
		code = "provider_denied"
	case errors.Is(err, domain.ErrMissingCode), errors.Is(err, domain.ErrInvalidState):
		code = "invalid_request"
	case errors.Is(err, domain.ErrProviderExchange):
		code = "provider_unavailable"
	case errors.Is(err, domain.ErrAccountRevoked):
		code = "account_disabled"
	}

	h.logger.WarnContext(r.Context(), "login callback failed",
		slog.String("code", code), slog.Any("error", err))

	target := h.frontendURL + "?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusFound)
}
