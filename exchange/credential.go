// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package exchange

import (
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2/jwt"
)

const redacted = "[REDACTED]"

// Credential is the session credential issued by the identity API after a
// successful exchange. It's a value: the orchestrator hands it to the caller
// and never touches it again.
type Credential struct {
	AccessToken  string `json:"access_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the lifetime of the access token in seconds, as reported
	// by the identity API (zero when not reported).
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// Scope is the space delimited scope granted for the credential.
	Scope string `json:"scope,omitempty"`

	// ReceivedAt is when the client received the credential. It is not part
	// of the wire format.
	ReceivedAt time.Time `json:"-"`
}

// Expiry returns when the access token expires. The zero time is returned
// when the identity API did not report a lifetime.
func (c *Credential) Expiry() time.Time {
	if c == nil || c.ExpiresIn <= 0 || c.ReceivedAt.IsZero() {
		return time.Time{}
	}
	return c.ReceivedAt.Add(time.Duration(c.ExpiresIn) * time.Second)
}

// Expired reports whether the access token has expired, allowing for skew.
// Credentials without a reported lifetime never expire.
func (c *Credential) Expired(skew time.Duration) bool {
	exp := c.Expiry()
	if exp.IsZero() {
		return false
	}
	return exp.Before(time.Now().Add(skew))
}

// IDTokenClaims parses the claims of the credential's ID token without
// verifying its signature. The identity API already verified the platform
// token; callers who need a verified token must verify it themselves.
func (c *Credential) IDTokenClaims() (map[string]interface{}, error) {
	const op = "exchange.(Credential).IDTokenClaims"
	if c == nil || c.IDToken == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	tok, err := jwt.ParseSigned(c.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse id_token: %w", op, err)
	}
	claims := map[string]interface{}{}
	if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to read id_token claims: %w", op, err)
	}
	return claims, nil
}

// String redacts the tokens so a Credential can be logged safely.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{TokenType: %q, AccessToken: %s, IDToken: %s, RefreshToken: %s, ExpiresIn: %d, Scope: %q}",
		c.TokenType, redact(c.AccessToken), redact(c.IDToken), redact(c.RefreshToken), c.ExpiresIn, c.Scope)
}

// GoString redacts the tokens for %#v.
func (c Credential) GoString() string {
	return "exchange." + c.String()
}

func redact(s string) string {
	if s == "" {
		return `""`
	}
	return redacted
}
