// Package event publishes authentication audit events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	pkgkafka "github.com/WajidAliShah2004/slack-bot/pkg/kafka"
)

// Kafka topic constants for authentication audit events.
const (
	TopicAuthEvents       = "slackbot.auth.events"
	TopicPermissionChecks = "slackbot.auth.permission_checks"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from this service.
const SourceAuthService = "slack-bot"

// AuthEventData is the payload for login, logout, refresh, and revoke events.
type AuthEventData struct {
	UserID   string            `json:"user_id"`
	Action   string            `json:"action"`
	Success  bool              `json:"success"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PermissionCheckData is the payload for a permission decision event.
type PermissionCheckData struct {
	UserID        string `json:"user_id"`
	Permission    string `json:"permission"`
	HasPermission bool   `json:"has_permission"`
}

// Producer publishes audit events to Kafka. Publishing is best effort:
// callers log and continue on failure because the database row is the
// authoritative record.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new audit event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAuthEvent publishes a login, logout, refresh, or revoke event.
func (p *Producer) PublishAuthEvent(ctx context.Context, ev *domain.AuthEvent) error {
	data := AuthEventData{
		UserID:   ev.UserID,
		Action:   string(ev.Action),
		Success:  ev.Success,
		Metadata: ev.Metadata,
	}

	event, err := pkgkafka.NewEvent(TopicAuthEvents, ev.UserID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create auth event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicAuthEvents, event); err != nil {
		return fmt.Errorf("publish auth event: %w", err)
	}

	p.logger.DebugContext(ctx, "published auth event",
		slog.String("event_id", event.EventID),
		slog.String("action", string(ev.Action)),
		slog.String("user_id", ev.UserID),
	)

	return nil
}

// PublishPermissionCheck publishes a permission decision.
func (p *Producer) PublishPermissionCheck(ctx context.Context, userID, permission string, allowed bool) error {
	data := PermissionCheckData{
		UserID:        userID,
		Permission:    permission,
		HasPermission: allowed,
	}

	event, err := pkgkafka.NewEvent(TopicPermissionChecks, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create permission check event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicPermissionChecks, event); err != nil {
		return fmt.Errorf("publish permission check event: %w", err)
	}

	return nil
}
