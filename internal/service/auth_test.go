package service

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
	"github.com/WajidAliShah2004/slack-bot/internal/oauth"
	"github.com/WajidAliShah2004/slack-bot/internal/token"
	apperrors "github.com/WajidAliShah2004/slack-bot/pkg/errors"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateLogin(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) SetLastLogout(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockUserRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// --- Mock Grant Repository ---

type mockGrantRepository struct {
	mock.Mock
}

func (m *mockGrantRepository) Upsert(ctx context.Context, grant *domain.PermissionGrant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *mockGrantRepository) Deactivate(ctx context.Context, userID, name string) error {
	args := m.Called(ctx, userID, name)
	return args.Error(0)
}

func (m *mockGrantRepository) ListByUserID(ctx context.Context, userID string) ([]domain.PermissionGrant, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PermissionGrant), args.Error(1)
}

// --- Mock Auth Event Repository ---

type mockAuthEventRepository struct {
	mock.Mock
}

func (m *mockAuthEventRepository) Insert(ctx context.Context, event *domain.AuthEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// --- Mock State Store ---

type mockStateStore struct {
	mock.Mock
}

func (m *mockStateStore) Issue(ctx context.Context, state string, ttl time.Duration) error {
	args := m.Called(ctx, state, ttl)
	return args.Error(0)
}

func (m *mockStateStore) Consume(ctx context.Context, state string) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

// --- Mock Identity Provider ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) AuthCodeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *mockProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

func (m *mockProvider) FetchProfile(ctx context.Context, tok *oauth2.Token) (*oauth.Profile, error) {
	args := m.Called(ctx, tok)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth.Profile), args.Error(1)
}

// --- Mock Audit Publisher ---

type mockAuditPublisher struct {
	mock.Mock
}

func (m *mockAuditPublisher) PublishAuthEvent(ctx context.Context, ev *domain.AuthEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *mockAuditPublisher) PublishPermissionCheck(ctx context.Context, userID, permission string, allowed bool) error {
	args := m.Called(ctx, userID, permission, allowed)
	return args.Error(0)
}

// --- Test Helpers ---

type authTestFixture struct {
	userRepo  *mockUserRepository
	grantRepo *mockGrantRepository
	eventRepo *mockAuthEventRepository
	states    *mockStateStore
	provider  *mockProvider
	producer  *mockAuditPublisher
	svc       *AuthService
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCipher(t *testing.T) *token.Cipher {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	c, err := token.NewCipher(key)
	require.NoError(t, err)
	return c
}

func newAuthTestFixture(t *testing.T) *authTestFixture {
	t.Helper()
	f := &authTestFixture{
		userRepo:  new(mockUserRepository),
		grantRepo: new(mockGrantRepository),
		eventRepo: new(mockAuthEventRepository),
		states:    new(mockStateStore),
		provider:  new(mockProvider),
		producer:  new(mockAuditPublisher),
	}
	tokens := token.NewManager("test-secret-key-for-testing", time.Hour)
	f.svc = NewAuthService(
		f.userRepo, f.grantRepo, f.eventRepo, f.states,
		tokens, newTestCipher(t), f.provider, f.producer,
		10*time.Minute, newTestLogger(),
	)
	return f
}

// expectAudit wires the audit sinks, which never fail in these tests.
func (f *authTestFixture) expectAudit() {
	f.eventRepo.On("Insert", mock.Anything, mock.AnythingOfType("*domain.AuthEvent")).Return(nil).Maybe()
	f.producer.On("PublishAuthEvent", mock.Anything, mock.AnythingOfType("*domain.AuthEvent")).Return(nil).Maybe()
}

func activeUser(id string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:          id,
		ExternalID:  "ext-" + id,
		Email:       id + "@example.com",
		DisplayName: "User " + id,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}

// --- BeginLogin ---

func TestBeginLogin_IssuesStateAndBuildsURL(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	var issued string
	f.states.On("Issue", ctx, mock.AnythingOfType("string"), 10*time.Minute).
		Run(func(args mock.Arguments) { issued = args.String(1) }).
		Return(nil)
	f.provider.On("AuthCodeURL", mock.AnythingOfType("string")).
		Return("https://login.example.com/authorize?state=x")

	url, state, err := f.svc.BeginLogin(ctx, "")

	require.NoError(t, err)
	assert.Equal(t, "https://login.example.com/authorize?state=x", url)
	assert.NotEmpty(t, issued)
	assert.Equal(t, issued, state)
	// The state passed to the provider must be the one stored.
	f.provider.AssertCalled(t, "AuthCodeURL", issued)
	f.states.AssertExpectations(t)
}

func TestBeginLogin_CallerSuppliedState(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	f.states.On("Issue", ctx, "caller-state", 10*time.Minute).Return(nil)
	f.provider.On("AuthCodeURL", "caller-state").
		Return("https://login.example.com/authorize?state=caller-state")

	url, state, err := f.svc.BeginLogin(ctx, "caller-state")

	require.NoError(t, err)
	assert.Equal(t, "https://login.example.com/authorize?state=caller-state", url)
	assert.Equal(t, "caller-state", state)
	f.states.AssertExpectations(t)
}

func TestBeginLogin_StateStoreDown(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	f.states.On("Issue", ctx, mock.AnythingOfType("string"), 10*time.Minute).
		Return(assert.AnError)

	url, _, err := f.svc.BeginLogin(ctx, "")

	assert.Empty(t, url)
	assert.Error(t, err)
}

// --- CompleteLogin ---

func TestCompleteLogin_NewIdentity(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	profile := &oauth.Profile{
		ID:          "ext-alice-1",
		Email:       "alice@example.com",
		DisplayName: "Alice Smith",
		GivenName:   "Alice",
		Surname:     "Smith",
	}

	f.states.On("Consume", ctx, "state-abc").Return(nil)
	f.provider.On("Exchange", ctx, "code-123").Return(&oauth2.Token{AccessToken: "provider-token"}, nil)
	f.provider.On("FetchProfile", ctx, mock.AnythingOfType("*oauth2.Token")).Return(profile, nil)
	f.userRepo.On("GetByExternalID", ctx, "ext-alice-1").Return(nil, apperrors.ErrNotFound)
	f.userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	result, err := f.svc.CompleteLogin(ctx, CallbackInput{Code: "code-123", State: "state-abc"})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Token)
	assert.NotEmpty(t, result.User.ID)
	assert.Equal(t, "ext-alice-1", result.User.ExternalID)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.True(t, result.User.IsActive)
	assert.NotEmpty(t, result.User.ProviderTokenEnc, "provider token must be sealed and stored")
	assert.NotContains(t, result.User.ProviderTokenEnc, "provider-token", "provider token must not be stored in clear")
	require.NotNil(t, result.User.LastLoginAt)

	f.userRepo.AssertExpectations(t)
	f.states.AssertExpectations(t)
}

func TestCompleteLogin_ExistingIdentityUpdatesProfile(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	existing := activeUser("u-1")
	existing.ExternalID = "ext-alice-1"
	existing.Email = "old@example.com"

	profile := &oauth.Profile{ID: "ext-alice-1", Email: "new@example.com", DisplayName: "Alice"}

	f.states.On("Consume", ctx, "state-abc").Return(nil)
	f.provider.On("Exchange", ctx, "code-123").Return(&oauth2.Token{AccessToken: "tok"}, nil)
	f.provider.On("FetchProfile", ctx, mock.AnythingOfType("*oauth2.Token")).Return(profile, nil)
	f.userRepo.On("GetByExternalID", ctx, "ext-alice-1").Return(existing, nil)
	f.userRepo.On("UpdateLogin", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	result, err := f.svc.CompleteLogin(ctx, CallbackInput{Code: "code-123", State: "state-abc"})

	require.NoError(t, err)
	assert.Equal(t, "u-1", result.User.ID, "existing user is reused, not recreated")
	assert.Equal(t, "new@example.com", result.User.Email, "profile fields refresh on login")
	f.userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.userRepo.AssertExpectations(t)
}

func TestCompleteLogin_ProviderDenied(t *testing.T) {
	f := newAuthTestFixture(t)
	f.expectAudit()

	result, err := f.svc.CompleteLogin(context.Background(), CallbackInput{ProviderError: "access_denied"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrProviderDenied)
	f.states.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
}

func TestCompleteLogin_MissingCode(t *testing.T) {
	f := newAuthTestFixture(t)
	f.expectAudit()

	result, err := f.svc.CompleteLogin(context.Background(), CallbackInput{State: "state-abc"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrMissingCode)
}

func TestCompleteLogin_StateReuseRejected(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	f.states.On("Consume", ctx, "state-used").Return(domain.ErrInvalidState)

	result, err := f.svc.CompleteLogin(ctx, CallbackInput{Code: "code-123", State: "state-used"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	f.provider.AssertNotCalled(t, "Exchange", mock.Anything, mock.Anything)
}

func TestCompleteLogin_ExchangeFailureNotRetried(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	f.states.On("Consume", ctx, "state-abc").Return(nil)
	f.provider.On("Exchange", ctx, "code-123").Return(nil, domain.ErrProviderExchange).Once()

	result, err := f.svc.CompleteLogin(ctx, CallbackInput{Code: "code-123", State: "state-abc"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrProviderExchange)
	f.provider.AssertNumberOfCalls(t, "Exchange", 1)
}

func TestCompleteLogin_RevokedAccountCannotLogin(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	revoked := activeUser("u-1")
	revoked.ExternalID = "ext-alice-1"
	revoked.IsActive = false
	revoked.RevokedAt = timePtr(time.Now().UTC())

	f.states.On("Consume", ctx, "state-abc").Return(nil)
	f.provider.On("Exchange", ctx, "code-123").Return(&oauth2.Token{AccessToken: "tok"}, nil)
	f.provider.On("FetchProfile", ctx, mock.AnythingOfType("*oauth2.Token")).
		Return(&oauth.Profile{ID: "ext-alice-1", Email: "a@example.com"}, nil)
	f.userRepo.On("GetByExternalID", ctx, "ext-alice-1").Return(revoked, nil)

	result, err := f.svc.CompleteLogin(ctx, CallbackInput{Code: "code-123", State: "state-abc"})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrAccountRevoked)
	f.userRepo.AssertNotCalled(t, "UpdateLogin", mock.Anything, mock.Anything)
}

func TestCompleteLogin_CreateRaceFallsBackToFetch(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	winner := activeUser("u-winner")
	winner.ExternalID = "ext-alice-1"

	f.states.On("Consume", ctx, "state-abc").Return(nil)
	f.provider.On("Exchange", ctx, "code-123").Return(&oauth2.Token{AccessToken: "tok"}, nil)
	f.provider.On("FetchProfile", ctx, mock.AnythingOfType("*oauth2.Token")).
		Return(&oauth.Profile{ID: "ext-alice-1", Email: "a@example.com"}, nil)
	f.userRepo.On("GetByExternalID", ctx, "ext-alice-1").Return(nil, apperrors.ErrNotFound).Once()
	f.userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Return(apperrors.AlreadyExists("user", "external_id", "ext-alice-1"))
	f.userRepo.On("GetByExternalID", ctx, "ext-alice-1").Return(winner, nil).Once()

	result, err := f.svc.CompleteLogin(ctx, CallbackInput{Code: "code-123", State: "state-abc"})

	require.NoError(t, err)
	assert.Equal(t, "u-winner", result.User.ID)
}

// --- Authorize ---

func TestAuthorize_ValidTokenActiveUser(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	user := activeUser("u-1")
	tokenString, err := token.NewManager("test-secret-key-for-testing", time.Hour).Issue(user)
	require.NoError(t, err)

	f.userRepo.On("GetByID", ctx, "u-1").Return(user, nil)

	got, err := f.svc.Authorize(ctx, tokenString)

	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
}

func TestAuthorize_RevokedAccountRejectedDespiteValidToken(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	user := activeUser("u-1")
	tokenString, err := token.NewManager("test-secret-key-for-testing", time.Hour).Issue(user)
	require.NoError(t, err)

	// The account is revoked after the token was issued. The token still
	// verifies, but authorization must fail on the live account state.
	user.IsActive = false
	f.userRepo.On("GetByID", ctx, "u-1").Return(user, nil)

	got, authErr := f.svc.Authorize(ctx, tokenString)

	assert.Nil(t, got)
	assert.ErrorIs(t, authErr, domain.ErrAccountRevoked)
}

func TestAuthorize_DeletedAccountRejected(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	user := activeUser("u-1")
	tokenString, err := token.NewManager("test-secret-key-for-testing", time.Hour).Issue(user)
	require.NoError(t, err)

	f.userRepo.On("GetByID", ctx, "u-1").Return(nil, apperrors.ErrNotFound)

	got, authErr := f.svc.Authorize(ctx, tokenString)

	assert.Nil(t, got)
	assert.ErrorIs(t, authErr, domain.ErrAccountRevoked)
}

func TestAuthorize_BadToken(t *testing.T) {
	f := newAuthTestFixture(t)

	got, err := f.svc.Authorize(context.Background(), "not-a-token")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	f.userRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// --- HasPermission ---

func TestHasPermission_EffectiveGrant(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	grants := []domain.PermissionGrant{
		{ID: "g-1", UserID: "u-1", Name: "reports.read", GrantedAt: time.Now(), IsActive: true},
	}
	f.grantRepo.On("ListByUserID", ctx, "u-1").Return(grants, nil)
	f.producer.On("PublishPermissionCheck", ctx, "u-1", "reports.read", true).Return(nil)

	allowed, err := f.svc.HasPermission(ctx, "u-1", "reports.read")

	require.NoError(t, err)
	assert.True(t, allowed)
	f.producer.AssertExpectations(t)
}

func TestHasPermission_AbsentGrantIsFalseNotError(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	f.grantRepo.On("ListByUserID", ctx, "u-1").Return([]domain.PermissionGrant{}, nil)
	f.producer.On("PublishPermissionCheck", ctx, "u-1", "reports.read", false).Return(nil)

	allowed, err := f.svc.HasPermission(ctx, "u-1", "reports.read")

	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasPermission_ExpiredGrantDenied(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	expired := time.Now().Add(-time.Hour)
	grants := []domain.PermissionGrant{
		{ID: "g-1", UserID: "u-1", Name: "reports.read", IsActive: true, ExpiresAt: &expired},
	}
	f.grantRepo.On("ListByUserID", ctx, "u-1").Return(grants, nil)
	f.producer.On("PublishPermissionCheck", ctx, "u-1", "reports.read", false).Return(nil)

	allowed, err := f.svc.HasPermission(ctx, "u-1", "reports.read")

	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasPermission_DeactivatedGrantDenied(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	grants := []domain.PermissionGrant{
		{ID: "g-1", UserID: "u-1", Name: "reports.read", IsActive: false},
	}
	f.grantRepo.On("ListByUserID", ctx, "u-1").Return(grants, nil)
	f.producer.On("PublishPermissionCheck", ctx, "u-1", "reports.read", false).Return(nil)

	allowed, err := f.svc.HasPermission(ctx, "u-1", "reports.read")

	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasPermission_AdminImpliesEverything(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	grants := []domain.PermissionGrant{
		{ID: "g-1", UserID: "u-1", Name: domain.PermissionAdmin, IsActive: true},
	}
	f.grantRepo.On("ListByUserID", ctx, "u-1").Return(grants, nil)
	f.producer.On("PublishPermissionCheck", ctx, "u-1", "anything.at.all", true).Return(nil)

	allowed, err := f.svc.HasPermission(ctx, "u-1", "anything.at.all")

	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestHasPermission_PublishFailureDoesNotChangeDecision(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	grants := []domain.PermissionGrant{
		{ID: "g-1", UserID: "u-1", Name: "reports.read", IsActive: true},
	}
	f.grantRepo.On("ListByUserID", ctx, "u-1").Return(grants, nil)
	f.producer.On("PublishPermissionCheck", ctx, "u-1", "reports.read", true).Return(assert.AnError)

	allowed, err := f.svc.HasPermission(ctx, "u-1", "reports.read")

	require.NoError(t, err)
	assert.True(t, allowed)
}

// --- Revoke / Grants ---

func TestRevoke_DeactivatesUser(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	f.userRepo.On("Deactivate", ctx, "u-1", mock.AnythingOfType("time.Time")).Return(nil)

	err := f.svc.Revoke(ctx, "u-1", "u-admin", "policy violation")

	require.NoError(t, err)
	f.userRepo.AssertExpectations(t)
	f.eventRepo.AssertCalled(t, "Insert", ctx, mock.MatchedBy(func(ev *domain.AuthEvent) bool {
		return ev.Action == domain.ActionRevoke && ev.Success &&
			ev.Metadata["reason"] == "policy violation"
	}))
}

func TestRevoke_AlreadyRevokedIsIdempotent(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	existing := activeUser("u-1")
	existing.IsActive = false

	f.userRepo.On("Deactivate", ctx, "u-1", mock.AnythingOfType("time.Time")).
		Return(apperrors.NotFound("user", "u-1"))
	f.userRepo.On("GetByID", ctx, "u-1").Return(existing, nil)

	err := f.svc.Revoke(ctx, "u-1", "u-admin", "")

	assert.NoError(t, err)
	// The no-op is still a recorded revocation.
	f.eventRepo.AssertCalled(t, "Insert", ctx, mock.MatchedBy(func(ev *domain.AuthEvent) bool {
		return ev.UserID == "u-1" && ev.Action == domain.ActionRevoke && ev.Success &&
			ev.Metadata["already_revoked"] == "true"
	}))
}

func TestRevoke_UnknownUser(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	f.userRepo.On("Deactivate", ctx, "u-missing", mock.AnythingOfType("time.Time")).
		Return(apperrors.NotFound("user", "u-missing"))
	f.userRepo.On("GetByID", ctx, "u-missing").Return(nil, apperrors.ErrNotFound)

	err := f.svc.Revoke(ctx, "u-missing", "u-admin", "")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	// The failed attempt is audited too.
	f.eventRepo.AssertCalled(t, "Insert", ctx, mock.MatchedBy(func(ev *domain.AuthEvent) bool {
		return ev.Action == domain.ActionRevoke && !ev.Success &&
			ev.Metadata["error"] == "user_not_found"
	}))
}

func TestGrantPermission_UnknownUser(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	f.userRepo.On("GetByID", ctx, "u-missing").Return(nil, apperrors.ErrNotFound)

	err := f.svc.GrantPermission(ctx, "u-missing", "reports.read", "u-admin", nil)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	f.grantRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestGrantPermission_Success(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()

	f.userRepo.On("GetByID", ctx, "u-1").Return(activeUser("u-1"), nil)
	f.grantRepo.On("Upsert", ctx, mock.MatchedBy(func(g *domain.PermissionGrant) bool {
		return g.UserID == "u-1" && g.Name == "reports.read" && g.IsActive && g.GrantedBy == "u-admin"
	})).Return(nil)

	err := f.svc.GrantPermission(ctx, "u-1", "reports.read", "u-admin", nil)

	require.NoError(t, err)
	f.grantRepo.AssertExpectations(t)
}

// --- Logout / Refresh ---

func TestLogout_StampsAndAudits(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	f.userRepo.On("SetLastLogout", ctx, "u-1", mock.AnythingOfType("time.Time")).Return(nil)

	require.NoError(t, f.svc.Logout(ctx, "u-1"))
	f.userRepo.AssertExpectations(t)
}

func TestRefresh_IssuesNewToken(t *testing.T) {
	f := newAuthTestFixture(t)
	ctx := context.Background()
	f.expectAudit()

	tokenString, err := f.svc.Refresh(ctx, activeUser("u-1"))

	require.NoError(t, err)
	assert.NotEmpty(t, tokenString)
}
