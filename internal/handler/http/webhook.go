package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	"github.com/WajidAliShah2004/slack-bot/internal/webhook"
	"github.com/WajidAliShah2004/slack-bot/pkg/httputil"
)

// maxWebhookBody bounds inbound event payloads.
const maxWebhookBody = 1 << 20

// EventSink consumes verified webhook events. Handle receives the raw
// payload bytes after signature verification.
type EventSink interface {
	Handle(ctx context.Context, payload []byte) error
}

// WebhookHandler verifies and dispatches inbound platform events.
type WebhookHandler struct {
	verifier *webhook.Verifier
	sink     EventSink
	logger   *slog.Logger
}

// NewWebhookHandler creates a new webhook HTTP handler.
func NewWebhookHandler(verifier *webhook.Verifier, sink EventSink, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, sink: sink, logger: logger}
}

// webhookEnvelope covers the fields needed for dispatch. The full payload is
// passed through to the sink untouched.
type webhookEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
}

// Events handles POST /webhook/events. The signature is computed over the
// exact raw body bytes, so the body is read before any parsing.
func (h *WebhookHandler) Events(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Message: "request body too large"},
			})
			return
		}
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "failed to read request body"},
		})
		return
	}

	sig := r.Header.Get(webhook.HeaderSignature)
	ts := r.Header.Get(webhook.HeaderTimestamp)

	if err := h.verifier.Verify(body, sig, ts); err != nil {
		// Stale timestamps and bad signatures get the same response so a
		// probing sender learns nothing about which check failed.
		if errors.Is(err, domain.ErrSignatureInvalid) || errors.Is(err, domain.ErrStaleTimestamp) {
			h.logger.WarnContext(r.Context(), "webhook verification failed", slog.Any("error", err))
			writeUnauthorized(w, r)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid event payload"},
		})
		return
	}

	// The platform's endpoint handshake echoes the challenge back in plain
	// text.
	if env.Type == "url_verification" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(env.Challenge))
		return
	}

	if err := h.sink.Handle(r.Context(), body); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event handling failed",
			slog.String("type", env.Type), slog.Any("error", err))
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// LoggingSink is the default sink. It records the event type and drops the
// payload.
type LoggingSink struct {
	logger *slog.Logger
}

// NewLoggingSink creates a sink that only logs received events.
func NewLoggingSink(logger *slog.Logger) *LoggingSink {
	return &LoggingSink{logger: logger}
}

// Handle logs the event type.
func (s *LoggingSink) Handle(ctx context.Context, payload []byte) error {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "webhook event received", slog.String("type", env.Type))
	return nil
}
