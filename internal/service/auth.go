// Package service implements the business logic for login, session
// authorization, and permission evaluation.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	"github.com/WajidAliShah2004/slack-bot/internal/oauth"
	"github.com/WajidAliShah2004/slack-bot/internal/repository"
	"github.com/WajidAliShah2004/slack-bot/internal/token"
	apperrors "github.com/WajidAliShah2004/slack-bot/pkg/errors"
	"github.com/WajidAliShah2004/slack-bot/pkg/logger"
)

// stateBytes is the entropy of a generated login state value.
const stateBytes = 32

// IdentityProvider is the OAuth provider surface the service depends on.
// *oauth.Provider satisfies it; tests substitute a fake.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, tok *oauth2.Token) (*oauth.Profile, error)
}

// AuditPublisher fans audit records out to Kafka. Publishing is best effort.
type AuditPublisher interface {
	PublishAuthEvent(ctx context.Context, ev *domain.AuthEvent) error
	PublishPermissionCheck(ctx context.Context, userID, permission string, allowed bool) error
}

// AuthService implements login, session verification, revocation gating, and
// permission evaluation.
type AuthService struct {
	userRepo  repository.UserRepository
	grantRepo repository.GrantRepository
	eventRepo repository.AuthEventRepository
	states    repository.StateStore
	tokens    *token.Manager
	cipher    *token.Cipher
	provider  IdentityProvider
	producer  AuditPublisher
	logger    *slog.Logger

	stateTTL time.Duration
	now      func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	grantRepo repository.GrantRepository,
	eventRepo repository.AuthEventRepository,
	states repository.StateStore,
	tokens *token.Manager,
	cipher *token.Cipher,
	provider IdentityProvider,
	producer AuditPublisher,
	stateTTL time.Duration,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		grantRepo: grantRepo,
		eventRepo: eventRepo,
		states:    states,
		tokens:    tokens,
		cipher:    cipher,
		provider:  provider,
		producer:  producer,
		logger:    log,
		stateTTL:  stateTTL,
		now:       time.Now,
	}
}

// CallbackInput holds the query parameters of the provider redirect.
type CallbackInput struct {
	Code          string
	State         string
	ProviderError string
}

// LoginResult is the outcome of a completed login.
type LoginResult struct {
	User  *domain.User
	Token string
}

// BeginLogin registers a single-use state value and returns the provider
// authorization URL together with the state. Callers that manage their own
// state pass it in; otherwise a fresh unguessable value is generated.
func (s *AuthService) BeginLogin(ctx context.Context, state string) (authURL, usedState string, err error) {
	if state == "" {
		buf := make([]byte, stateBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", "", fmt.Errorf("generate login state: %w", err)
		}
		state = base64.RawURLEncoding.EncodeToString(buf)
	}

	if err := s.states.Issue(ctx, state, s.stateTTL); err != nil {
		return "", "", fmt.Errorf("issue login state: %w", err)
	}

	return s.provider.AuthCodeURL(state), state, nil
}

// CompleteLogin handles the provider callback: it validates the state,
// exchanges the code, resolves or creates the user, and issues a session
// token. The checks run in a fixed order so that a forged callback learns
// nothing from which one failed first.
func (s *AuthService) CompleteLogin(ctx context.Context, in CallbackInput) (*LoginResult, error) {
	log := logger.WithContext(ctx, s.logger)

	if in.ProviderError != "" {
		log.WarnContext(ctx, "provider reported authorization error", slog.String("error", in.ProviderError))
		s.audit(ctx, "", domain.ActionLogin, false, map[string]string{"reason": "provider_denied", "provider_error": in.ProviderError})
		return nil, domain.ErrProviderDenied
	}
	if in.Code == "" {
		s.audit(ctx, "", domain.ActionLogin, false, map[string]string{"reason": "missing_code"})
		return nil, domain.ErrMissingCode
	}

	if err := s.states.Consume(ctx, in.State); err != nil {
		s.audit(ctx, "", domain.ActionLogin, false, map[string]string{"reason": "invalid_state"})
		if errors.Is(err, domain.ErrInvalidState) {
			return nil, err
		}
		return nil, fmt.Errorf("consume login state: %w", err)
	}

	// The authorization code is single use at the provider, so the
	// exchange is never retried.
	tok, err := s.provider.Exchange(ctx, in.Code)
	if err != nil {
		s.audit(ctx, "", domain.ActionLogin, false, map[string]string{"reason": "exchange_failed"})
		return nil, err
	}

	profile, err := s.provider.FetchProfile(ctx, tok)
	if err != nil {
		s.audit(ctx, "", domain.ActionLogin, false, map[string]string{"reason": "profile_failed"})
		return nil, err
	}

	user, err := s.upsertUser(ctx, profile, tok)
	if err != nil {
		if errors.Is(err, domain.ErrAccountRevoked) {
			s.audit(ctx, user.ID, domain.ActionLogin, false, map[string]string{"reason": "account_revoked"})
		}
		return nil, err
	}

	sessionToken, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	log.InfoContext(ctx, "login completed", slog.String("user_id", user.ID))
	s.audit(ctx, user.ID, domain.ActionLogin, true, nil)

	return &LoginResult{User: user, Token: sessionToken}, nil
}

// upsertUser resolves the provider profile to a local user keyed on the
// provider's stable identity, creating the record on first login. A
// deactivated account fails here, before any row is touched.
func (s *AuthService) upsertUser(ctx context.Context, profile *oauth.Profile, tok *oauth2.Token) (*domain.User, error) {
	sealed, err := s.cipher.Seal(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal provider token: %w", err)
	}

	now := s.now().UTC()

	existing, err := s.userRepo.GetByExternalID(ctx, profile.ID)
	switch {
	case err == nil:
		if !existing.IsActive {
			return existing, domain.ErrAccountRevoked
		}
		existing.Email = profile.Email
		existing.DisplayName = profile.DisplayName
		existing.GivenName = profile.GivenName
		existing.Surname = profile.Surname
		existing.ProviderTokenEnc = sealed
		existing.LastLoginAt = &now
		if err := s.userRepo.UpdateLogin(ctx, existing); err != nil {
			return nil, fmt.Errorf("update user on login: %w", err)
		}
		return existing, nil

	case errors.Is(err, apperrors.ErrNotFound):
		user := &domain.User{
			ID:               uuid.New().String(),
			ExternalID:       profile.ID,
			Email:            profile.Email,
			DisplayName:      profile.DisplayName,
			GivenName:        profile.GivenName,
			Surname:          profile.Surname,
			ProviderTokenEnc: sealed,
			IsActive:         true,
			LastLoginAt:      &now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			// A concurrent first login for the same identity won the
			// insert race; fetch the row it created.
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				return s.userRepo.GetByExternalID(ctx, profile.ID)
			}
			return nil, fmt.Errorf("create user: %w", err)
		}
		return user, nil

	default:
		return nil, fmt.Errorf("look up user by external id: %w", err)
	}
}

// Authorize verifies the session token and then checks the live account
// state. A structurally valid token for a revoked or deleted account fails
// with domain.ErrAccountRevoked. There is no caching step: revocation takes
// effect on the very next request.
func (s *AuthService) Authorize(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := s.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrAccountRevoked
		}
		return nil, fmt.Errorf("load user for authorization: %w", err)
	}

	if !user.IsActive {
		return nil, domain.ErrAccountRevoked
	}

	return user, nil
}

// HasPermission reports whether the user holds an effective grant for the
// named permission. Holding the admin permission implies every other
// permission. An absent grant is a false decision, not an error.
func (s *AuthService) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	grants, err := s.grantRepo.ListByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list permission grants: %w", err)
	}

	now := s.now().UTC()
	allowed := false
	for i := range grants {
		g := &grants[i]
		if !g.Effective(now) {
			continue
		}
		if g.Name == permission || g.Name == domain.PermissionAdmin {
			allowed = true
			break
		}
	}

	if err := s.producer.PublishPermissionCheck(ctx, userID, permission, allowed); err != nil {
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "failed to publish permission check",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	return allowed, nil
}

// RequirePermission is HasPermission with a denial error instead of a bool.
func (s *AuthService) RequirePermission(ctx context.Context, userID, permission string) error {
	allowed, err := s.HasPermission(ctx, userID, permission)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrPermissionDenied
	}
	return nil
}

// Refresh issues a fresh session token for an already-authorized user. The
// caller must have passed Authorize on this request; refresh never extends a
// revoked account's access.
func (s *AuthService) Refresh(ctx context.Context, user *domain.User) (string, error) {
	sessionToken, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}

	s.audit(ctx, user.ID, domain.ActionRefresh, true, nil)
	return sessionToken, nil
}

// Logout stamps last_logout_at. Issued tokens stay structurally valid until
// expiry; logout is an audit boundary, not a revocation.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.userRepo.SetLastLogout(ctx, userID, s.now().UTC()); err != nil {
		return err
	}

	s.audit(ctx, userID, domain.ActionLogout, true, nil)
	return nil
}

// Revoke deactivates the account. Every subsequent Authorize for the user
// fails regardless of token expiry. Revoking an already-revoked account is a
// no-op success. Every outcome, including the no-op and the failure, is
// recorded in the audit trail.
func (s *AuthService) Revoke(ctx context.Context, userID, revokedBy, reason string) error {
	metadata := map[string]string{"revoked_by": revokedBy}
	if reason != "" {
		metadata["reason"] = reason
	}

	err := s.userRepo.Deactivate(ctx, userID, s.now().UTC())
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		metadata["error"] = "deactivate_failed"
		s.audit(ctx, userID, domain.ActionRevoke, false, metadata)
		return err
	}
	if err != nil {
		// Distinguish a missing user from an already-revoked one so the
		// former still surfaces as not found.
		if _, getErr := s.userRepo.GetByID(ctx, userID); getErr != nil {
			metadata["error"] = "user_not_found"
			s.audit(ctx, userID, domain.ActionRevoke, false, metadata)
			return getErr
		}
		metadata["already_revoked"] = "true"
	}

	s.audit(ctx, userID, domain.ActionRevoke, true, metadata)
	return nil
}

// GrantPermission grants the named permission to the user, reactivating a
// previously ended grant for the same name.
func (s *AuthService) GrantPermission(ctx context.Context, userID, name, grantedBy string, expiresAt *time.Time) error {
	if name == "" {
		return apperrors.InvalidInput("permission name is required")
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}

	grant := &domain.PermissionGrant{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		GrantedAt: s.now().UTC(),
		GrantedBy: grantedBy,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}

	return s.grantRepo.Upsert(ctx, grant)
}

// RevokePermission ends the named grant for the user.
func (s *AuthService) RevokePermission(ctx context.Context, userID, name string) error {
	return s.grantRepo.Deactivate(ctx, userID, name)
}

// ListPermissions returns the user's currently effective permission names.
func (s *AuthService) ListPermissions(ctx context.Context, userID string) ([]string, error) {
	grants, err := s.grantRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list permission grants: %w", err)
	}

	now := s.now().UTC()
	var names []string
	for i := range grants {
		if grants[i].Effective(now) {
			names = append(names, grants[i].Name)
		}
	}

	return names, nil
}

// audit writes the authoritative database record and fans out to Kafka.
// Neither failure aborts the calling operation; both are logged.
func (s *AuthService) audit(ctx context.Context, userID string, action domain.AuthAction, success bool, metadata map[string]string) {
	ev := &domain.AuthEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Success:   success,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}

	log := logger.WithContext(ctx, s.logger)
	if err := s.eventRepo.Insert(ctx, ev); err != nil {
		log.ErrorContext(ctx, "failed to record auth event",
			slog.String("action", string(action)), slog.Any("error", err))
	}
	if err := s.producer.PublishAuthEvent(ctx, ev); err != nil {
		log.ErrorContext(ctx, "failed to publish auth event",
			slog.String("action", string(action)), slog.Any("error", err))
	}
}
