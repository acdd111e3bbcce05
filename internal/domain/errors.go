package domain

import "errors"

// Error kinds for the authentication and authorization paths. Callers match
// with errors.Is and decide transport mapping at the handler layer; revocation
// and permission failures must be externally indistinguishable from a plain
// "not authorized".
var (
	// ErrProviderDenied means the identity provider reported an error on
	// the authorization redirect (user declined, consent failure).
	ErrProviderDenied = errors.New("provider denied authorization")

	// ErrMissingCode means the callback arrived without an authorization code.
	ErrMissingCode = errors.New("authorization code missing")

	// ErrInvalidState means the CSRF state value is unknown, expired, or was
	// already consumed.
	ErrInvalidState = errors.New("invalid or expired state")

	// ErrProviderExchange means the code exchange or profile fetch against
	// the provider failed (network or provider outage). Retryable by the
	// caller via a fresh login; the single-use code itself is never retried.
	ErrProviderExchange = errors.New("provider exchange failed")

	// ErrInvalidToken covers malformed structure, bad signature, wrong
	// issuer or audience, and expiry. The caller must re-authenticate.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrAccountRevoked means the token verified but the referenced account
	// is deactivated or gone. Not recoverable without admin reinstatement.
	ErrAccountRevoked = errors.New("account revoked")

	// ErrPermissionDenied means the user lacks the required permission grant.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSignatureInvalid means an inbound Slack request failed HMAC
	// signature verification.
	ErrSignatureInvalid = errors.New("request signature invalid")

	// ErrStaleTimestamp means an inbound Slack request carried a timestamp
	// outside the replay tolerance window.
	ErrStaleTimestamp = errors.New("request timestamp stale")
)
