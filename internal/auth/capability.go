// Package auth mints and verifies card-scoped capability tokens for
// trusted internal callers (background jobs, admin tooling) that need
// to trigger enrichment on cards they do not own.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Token layout: base64url(cardID|expiryUnix|hex(hmac-sha256(cardID|expiryUnix))).
// The signature covers both the card scope and the expiry, so a token
// for one card cannot be replayed against another or past its TTL.

// Mint creates a capability token scoped to a single card.
func Mint(secret, cardID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", eris.New("auth: capability secret not configured")
	}
	if cardID == "" {
		return "", eris.New("auth: card id required")
	}
	expiry := time.Now().Add(ttl).Unix()
	payload := cardID + "|" + strconv.FormatInt(expiry, 10)
	raw := payload + "|" + sign(secret, payload)
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// Verify checks a capability token against a card id at the given time.
// It returns nil only for a well-formed, unexpired token whose
// signature and card scope both match.
func Verify(secret, token, cardID string, now time.Time) error {
	if secret == "" {
		return eris.New("auth: capability secret not configured")
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return eris.Wrap(err, "auth: decode token")
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return eris.New("auth: malformed token")
	}
	scope, expiryStr, sig := parts[0], parts[1], parts[2]

	expected := sign(secret, scope+"|"+expiryStr)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return eris.New("auth: bad signature")
	}
	if scope != cardID {
		return eris.New("auth: token scoped to different card")
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return eris.Wrap(err, "auth: parse expiry")
	}
	if now.Unix() > expiry {
		return eris.New("auth: token expired")
	}
	return nil
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
