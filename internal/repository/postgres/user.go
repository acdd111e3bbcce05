package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	apperrors "github.com/WajidAliShah2004/slack-bot/pkg/errors"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, external_id, email, display_name, given_name, surname, provider_token_enc, is_active, last_login_at, last_logout_at, revoked_at, created_at, updated_at`

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, external_id, email, display_name, given_name, surname, provider_token_enc, is_active, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.ExternalID,
		u.Email,
		u.DisplayName,
		u.GivenName,
		u.Surname,
		u.ProviderTokenEnc,
		u.IsActive,
		u.LastLoginAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "external_id", u.ExternalID)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

// GetByExternalID retrieves a user by their stable provider identity.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	return r.scanUser(ctx, query, externalID)
}

// UpdateLogin updates mutable profile fields, the sealed provider token, and
// last_login_at. is_active and revoked_at are deliberately not in the SET
// list: a login racing a revocation must not reactivate the account.
func (r *UserRepository) UpdateLogin(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $1, display_name = $2, given_name = $3, surname = $4,
		    provider_token_enc = $5, last_login_at = $6, updated_at = $7
		WHERE id = $8`

	ct, err := r.db.Exec(ctx, query,
		u.Email,
		u.DisplayName,
		u.GivenName,
		u.Surname,
		u.ProviderTokenEnc,
		u.LastLoginAt,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user login: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}

	return nil
}

// SetLastLogout stamps last_logout_at for the user.
func (r *UserRepository) SetLastLogout(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_logout_at = $1, updated_at = $1 WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("set last logout: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// Deactivate soft-deactivates the user. The guard on is_active makes the
// revoke idempotent and keeps the earliest revoked_at timestamp.
func (r *UserRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE users
		SET is_active = false, revoked_at = $1, updated_at = $1
		WHERE id = $2 AND is_active = true`

	ct, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		// Either the user does not exist or is already inactive; both
		// resolve to not-found so callers cannot distinguish them.
		return apperrors.NotFound("user", id)
	}

	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.DisplayName,
		&u.GivenName,
		&u.Surname,
		&u.ProviderTokenEnc,
		&u.IsActive,
		&u.LastLoginAt,
		&u.LastLogoutAt,
		&u.RevokedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}
