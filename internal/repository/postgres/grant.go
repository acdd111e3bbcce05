package postgres

import (
	"context"
	"fmt"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	apperrors "github.com/WajidAliShah2004/slack-bot/pkg/errors"
)

// GrantRepository implements repository.GrantRepository using PostgreSQL.
type GrantRepository struct {
	db DB
}

// NewGrantRepository creates a new PostgreSQL-backed grant repository.
func NewGrantRepository(db DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Upsert creates a grant or reactivates an ended one for the same
// (user_id, name) pair. The unique pair constraint makes this atomic under
// concurrent grants.
func (r *GrantRepository) Upsert(ctx context.Context, g *domain.PermissionGrant) error {
	query := `
		INSERT INTO permission_grants (id, user_id, name, granted_at, granted_by, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, name) DO UPDATE
		SET granted_at = EXCLUDED.granted_at,
		    granted_by = EXCLUDED.granted_by,
		    expires_at = EXCLUDED.expires_at,
		    is_active  = EXCLUDED.is_active`

	_, err := r.db.Exec(ctx, query,
		g.ID,
		g.UserID,
		g.Name,
		g.GrantedAt,
		g.GrantedBy,
		g.ExpiresAt,
		g.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert permission grant: %w", err)
	}

	return nil
}

// Deactivate ends the named grant for the user.
func (r *GrantRepository) Deactivate(ctx context.Context, userID, name string) error {
	query := `
		UPDATE permission_grants
		SET is_active = false
		WHERE user_id = $1 AND name = $2 AND is_active = true`

	ct, err := r.db.Exec(ctx, query, userID, name)
	if err != nil {
		return fmt.Errorf("deactivate permission grant: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("permission grant", name)
	}

	return nil
}

// ListByUserID returns all grants for the user, active or not. Effectiveness
// is evaluated by the caller so that expiry uses a single clock.
func (r *GrantRepository) ListByUserID(ctx context.Context, userID string) ([]domain.PermissionGrant, error) {
	query := `
		SELECT id, user_id, name, granted_at, granted_by, expires_at, is_active
		FROM permission_grants
		WHERE user_id = $1
		ORDER BY granted_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list permission grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.PermissionGrant
	for rows.Next() {
		var g domain.PermissionGrant
		if err := rows.Scan(
			&g.ID,
			&g.UserID,
			&g.Name,
			&g.GrantedAt,
			&g.GrantedBy,
			&g.ExpiresAt,
			&g.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan permission grant row: %w", err)
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permission grant rows: %w", err)
	}

	return grants, nil
}
