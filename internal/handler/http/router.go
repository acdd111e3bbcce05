package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	"github.com/WajidAliShah2004/slack-bot/internal/service"
	"github.com/WajidAliShah2004/slack-bot/pkg/health"
	"github.com/WajidAliShah2004/slack-bot/pkg/middleware"
)

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	authHandler *AuthHandler,
	adminHandler *AdminHandler,
	webhookHandler *WebhookHandler,
	authService *service.AuthService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("slack-bot"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Inbound platform events, gated by HMAC signature rather than session.
	r.Post("/webhook/events", webhookHandler.Events)

	// Login round trip (public)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Get("/login", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
	})

	// Session endpoints
	r.Group(func(r chi.Router) {
		r.Use(Session(authService, logger))

		r.Post("/api/v1/auth/refresh", authHandler.Refresh)
		r.Post("/api/v1/auth/logout", authHandler.Logout)
		r.Post("/api/v1/auth/permissions/check", authHandler.CheckPermission)
		r.Get("/api/v1/users/me", authHandler.Me)
	})

	// Admin endpoints
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(Session(authService, logger))
		r.Use(RequirePermission(authService, domain.PermissionAdmin, logger))

		r.Post("/users/{id}/revoke", adminHandler.RevokeUser)
		r.Post("/users/{id}/permissions", adminHandler.GrantPermission)
		r.Delete("/users/{id}/permissions/{name}", adminHandler.RevokePermission)
	})

	return r
}
