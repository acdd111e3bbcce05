package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
)

// Config holds the identity-provider settings. ClientID and TenantID are
// required; their absence is a fatal startup condition, not a per-request
// error. Endpoint overrides exist for tests and non-default clouds.
type Config struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	RedirectURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// Profile is the subset of the provider user profile this service consumes.
// ID is the stable join key; email can change and is never used as one.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"mail"`
	PrincipalID string `json:"userPrincipalName"`
	DisplayName string `json:"displayName"`
	GivenName   string `json:"givenName"`
	Surname     string `json:"surname"`
}

const (
	defaultAuthURLFormat  = "https://login.microsoftonline.com/%s/oauth2/v2.0/authorize"
	defaultTokenURLFormat = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	defaultUserInfoURL    = "https://graph.microsoft.com/v1.0/me"

	profileFetchTimeout = 10 * time.Second
)

// Provider performs the authorization-code flow against the external
// identity provider.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// New creates a provider client. It fails when the client id or tenant is
// absent so that misconfiguration surfaces loudly at process start.
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oauth provider: client id is required")
	}
	if cfg.TenantID == "" && (cfg.AuthURL == "" || cfg.TokenURL == "") {
		return nil, fmt.Errorf("oauth provider: tenant id is required")
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = fmt.Sprintf(defaultAuthURLFormat, cfg.TenantID)
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf(defaultTokenURLFormat, cfg.TenantID)
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		userInfoURL: userInfoURL,
		httpClient:  &http.Client{Timeout: profileFetchTimeout},
	}, nil
}

// AuthCodeURL builds the provider authorization URL carrying the given
// CSRF state value.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for provider tokens. Codes are
// single-use, so a failed exchange is never retried here; the caller starts
// a fresh login instead.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderExchange, err)
	}
	return tok, nil
}

// FetchProfile retrieves the authenticated user's profile. The read is
// idempotent, so one retry is attempted on transport errors and 5xx
// responses.
func (p *Provider) FetchProfile(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		profile, retryable, err := p.fetchProfileOnce(ctx, tok)
		if err == nil {
			return profile, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrProviderExchange, lastErr)
}

func (p *Provider) fetchProfileOnce(ctx context.Context, tok *oauth2.Token) (*Profile, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build profile request: %w", err)
	}
	tok.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("fetch profile: provider returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("fetch profile: provider returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read profile response: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, false, fmt.Errorf("decode profile response: %w", err)
	}

	if profile.ID == "" {
		return nil, false, fmt.Errorf("profile response missing id")
	}
	// Some tenants leave mail unset; fall back to the principal name.
	if profile.Email == "" {
		profile.Email = profile.PrincipalID
	}

	return &profile, false, nil
}
