package study

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthToken is the minimal signed assertion used to bootstrap a session or
// authorize a one-time action. Immutable once issued; never persisted.
type AuthToken struct {
	Sub string `json:"sub"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
	Nbf *int64 `json:"nbf,omitempty"`
}

// SessionToken is the longer-lived credential stored in the session cookie.
// Structurally identical to AuthToken; the distinct type keeps the two
// lifecycles from mixing in signatures.
type SessionToken AuthToken

// Verify interface compliance so the token codec can parse directly into
// the claim struct.
var _ jwt.Claims = (*AuthToken)(nil)

func (t *AuthToken) GetExpirationTime() (*jwt.NumericDate, error) {
	if t.Exp == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(t.Exp, 0)), nil
}

func (t *AuthToken) GetIssuedAt() (*jwt.NumericDate, error) {
	if t.Iat == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(t.Iat, 0)), nil
}

func (t *AuthToken) GetNotBefore() (*jwt.NumericDate, error) {
	if t.Nbf == nil {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(*t.Nbf, 0)), nil
}

func (t *AuthToken) GetIssuer() (string, error) {
	return "", nil
}

func (t *AuthToken) GetSubject() (string, error) {
	return t.Sub, nil
}

func (t *AuthToken) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

// TTL returns the token lifetime in seconds.
func (t *AuthToken) TTL() int64 {
	return t.Exp - t.Iat
}

// TTL returns the session lifetime in seconds.
func (t *SessionToken) TTL() int64 {
	return t.Exp - t.Iat
}
