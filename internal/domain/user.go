package domain

import (
	"time"
)

// The distinguished permission that implies every other permission.
const PermissionAdmin = "admin"

// User is the canonical user record. It is created on the first successful
// OAuth callback for a given provider identity and updated on every
// subsequent login. Revocation soft-deactivates the row; it is never
// hard-deleted.
//
// ExternalID is the provider's stable user identity and the only join key:
// email can change at the provider and is never used as one.
type User struct {
	ID          string     `json:"id"`
	ExternalID  string     `json:"external_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	GivenName   string     `json:"given_name,omitempty"`
	Surname     string     `json:"surname,omitempty"`
	// Provider access token, AEAD-encrypted and base64-encoded. Never
	// serialized in API responses.
	ProviderTokenEnc string     `json:"-"`
	IsActive         bool       `json:"is_active"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	LastLogoutAt     *time.Time `json:"last_logout_at,omitempty"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PermissionGrant records that a user holds a named permission. The
// (UserID, Name) pair is unique. A grant is ended by deactivation or expiry,
// never by mutation of other fields.
type PermissionGrant struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	GrantedAt time.Time  `json:"granted_at"`
	GrantedBy string     `json:"granted_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// Effective reports whether the grant confers its permission at the given
// instant: it must be active and either have no expiry or expire later.
func (g *PermissionGrant) Effective(now time.Time) bool {
	if !g.IsActive {
		return false
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return false
	}
	return true
}

// AuthAction enumerates the auditable authentication actions.
type AuthAction string

const (
	ActionLogin   AuthAction = "login"
	ActionLogout  AuthAction = "logout"
	ActionRefresh AuthAction = "refresh"
	ActionRevoke  AuthAction = "revoke"
)

// AuthEvent is an immutable append-only audit record. UserID is empty for
// anonymous or failed attempts where no user was resolved.
type AuthEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id,omitempty"`
	Action    AuthAction        `json:"action"`
	Success   bool              `json:"success"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
