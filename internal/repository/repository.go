package repository

import (
	"context"
	"time"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByExternalID retrieves a user by their stable provider identity.
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)

	// UpdateLogin updates mutable profile fields, the sealed provider
	// token, and last_login_at. It never touches is_active or revoked_at,
	// so a concurrent revocation is not resurrected by a login.
	UpdateLogin(ctx context.Context, user *domain.User) error

	// SetLastLogout stamps last_logout_at for the user.
	SetLastLogout(ctx context.Context, id string, at time.Time) error

	// Deactivate soft-deactivates the user (is_active=false, revoked_at
	// set). The row is never deleted.
	Deactivate(ctx context.Context, id string, at time.Time) error
}

// GrantRepository defines the interface for permission grant persistence.
type GrantRepository interface {
	// Upsert creates a grant, or reactivates an ended grant for the same
	// (user, name) pair with fresh granted_at/expires_at values.
	Upsert(ctx context.Context, grant *domain.PermissionGrant) error

	// Deactivate ends the named grant for the user.
	Deactivate(ctx context.Context, userID, name string) error

	// ListByUserID returns all grants for the user, active or not.
	ListByUserID(ctx context.Context, userID string) ([]domain.PermissionGrant, error)
}

// AuthEventRepository appends immutable audit records. There is deliberately
// no update or delete operation.
type AuthEventRepository interface {
	Insert(ctx context.Context, event *domain.AuthEvent) error
}

// StateStore issues and consumes single-use CSRF state values for the OAuth
// redirect round trip. Consume must be atomic: of two concurrent callbacks
// bearing the same state, exactly one succeeds.
type StateStore interface {
	Issue(ctx context.Context, state string, ttl time.Duration) error
	Consume(ctx context.Context, state string) error
}
