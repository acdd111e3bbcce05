package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
)

const (
	issuer   = "slack-bot"
	audience = "slack-bot-api"
)

// SessionClaims is the fixed claim set carried by a session token. Extra
// fields in a presented token are ignored; missing required fields fail
// verification.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Manager issues and verifies signed session tokens. The signing secret is
// read once at construction and never mutated, so a single Manager is safe
// for concurrent use.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewManager creates a token manager with the given signing secret and
// session lifetime.
func NewManager(secret string, lifetime time.Duration) *Manager {
	return &Manager{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Issue produces a signed session token for the given user. Expiry is fixed
// at the configured lifetime from issuance.
func (m *Manager) Issue(user *domain.User) (string, error) {
	now := m.now().UTC()
	claims := &SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a session token, returning the decoded claims.
// The signing algorithm is pinned to HS256: a token declaring any other
// algorithm is rejected regardless of its signature. All failures (malformed
// structure, bad signature, wrong issuer or audience, expiry) surface as
// domain.ErrInvalidToken.
//
// Verification is a pure function of the token and the secret. It cannot
// detect revocation; callers must pair it with a live account-status check.
func (m *Manager) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: claims mismatch", domain.ErrInvalidToken)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", domain.ErrInvalidToken)
	}

	return claims, nil
}
