package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	"github.com/WajidAliShah2004/slack-bot/pkg/httputil"
	"github.com/WajidAliShah2004/slack-bot/pkg/logger"
)

// SessionAuthorizer resolves a session token to a live, active user.
// *service.AuthService satisfies it.
type SessionAuthorizer interface {
	Authorize(ctx context.Context, tokenString string) (*domain.User, error)
}

// PermissionChecker enforces a permission for a user.
type PermissionChecker interface {
	RequirePermission(ctx context.Context, userID, permission string) error
}

// SessionCookieName is the cookie that carries the session token for
// browser clients.
const SessionCookieName = "session_token"

type contextKey string

const userContextKey contextKey = "session_user"

// TokenFromRequest extracts the session token. The Authorization header
// wins over the cookie, which wins over the query parameter. The query
// form exists for redirect flows that cannot set headers; API clients
// should not use it.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok && tok != "" {
			return tok
		}
	}

	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	return r.URL.Query().Get("token")
}

// Session authenticates the request: it verifies the session token and then
// checks the live account state. A valid token for a revoked account is
// rejected exactly like a missing permission, so callers cannot probe which
// accounts exist.
func Session(svc SessionAuthorizer, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				writeUnauthorized(w, r)
				return
			}

			user, err := svc.Authorize(r.Context(), tokenString)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrInvalidToken):
					writeUnauthorized(w, r)
				case errors.Is(err, domain.ErrAccountRevoked):
					writeForbidden(w, r)
				default:
					httputil.WriteError(w, r, err, log)
				}
				return
			}

			ctx := logger.WithUserID(r.Context(), user.ID)
			ctx = context.WithValue(ctx, userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates the request on an effective permission grant.
// Must be mounted after Session.
func RequirePermission(svc PermissionChecker, permission string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, r)
				return
			}

			if err := svc.RequirePermission(r.Context(), user.ID, permission); err != nil {
				if errors.Is(err, domain.ErrPermissionDenied) {
					writeForbidden(w, r)
					return
				}
				httputil.WriteError(w, r, err, log)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user set by Session.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "UNAUTHORIZED",
			Message:   "authentication required",
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}

// writeForbidden is the single forbidden response. Revocation and missing
// permissions produce the same bytes on the wire.
func writeForbidden(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "FORBIDDEN",
			Message:   "not authorized",
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}
