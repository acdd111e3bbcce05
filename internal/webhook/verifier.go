package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/WajidAliShah2004/slack-bot/internal/domain"
)

// Header names carried by signed Slack requests.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Signature-Timestamp"
)

const signaturePrefix = "v0="

// Verifier authenticates inbound Slack requests by recomputing the request
// signature over the raw body bytes. The secret is read-only after
// construction, so a single Verifier is safe for concurrent use.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier with the given shared secret and replay
// tolerance window.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Signature computes the expected signature for a timestamp and raw body:
// "v0=" + hex(HMAC-SHA256(secret, "v0:" + timestamp + ":" + body)).
func Signature(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the claimed signature and timestamp against the raw request
// body. The body must be the exact bytes received on the wire; hashing a
// re-serialized parse of the body breaks the contract.
//
// Failures map to domain.ErrSignatureInvalid (absent or mismatched signature
// headers) or domain.ErrStaleTimestamp (timestamp outside the tolerance
// window). The signature comparison is constant-time.
func (v *Verifier) Verify(body []byte, signature, timestamp string) error {
	if signature == "" || timestamp == "" {
		return fmt.Errorf("%w: missing signature headers", domain.ErrSignatureInvalid)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", domain.ErrSignatureInvalid)
	}

	// Reject replays before doing any signature work. Skew is checked in
	// both directions so a future-dated request is also refused.
	age := v.now().UTC().Sub(time.Unix(ts, 0).UTC())
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside %s window", domain.ErrStaleTimestamp, v.tolerance)
	}

	expected := Signature(v.secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrSignatureInvalid)
	}

	return nil
}
