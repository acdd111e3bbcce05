package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
)

// AuthEventRepository implements repository.AuthEventRepository using
// PostgreSQL. Events are append-only.
type AuthEventRepository struct {
	db DB
}

// NewAuthEventRepository creates a new PostgreSQL-backed auth event repository.
func NewAuthEventRepository(db DB) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// Insert records an authentication event.
func (r *AuthEventRepository) Insert(ctx context.Context, ev *domain.AuthEvent) error {
	metadata, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal auth event metadata: %w", err)
	}

	query := `
		INSERT INTO auth_events (id, user_id, action, success, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		ev.ID,
		ev.UserID,
		ev.Action,
		ev.Success,
		metadata,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}

	return nil
}
