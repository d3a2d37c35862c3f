package study

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// SecretKey pairs a signing key with its algorithm. The codec holds an
// ordered list: the first entry signs new tokens, every entry is tried
// during verification so rotated-out keys keep validating old tokens until
// they expire.
type SecretKey struct {
	Key       string `yaml:"key"`
	Algorithm string `yaml:"algorithm"`
}

// Default lifetimes, in seconds.
const (
	DefaultAuthLinkTTL = 600
	DefaultSessionTTL  = 86_400 * 30
)

// Codec encodes and decodes the signed, time-bounded tokens used for both
// magic links and session cookies. All time validation runs against the
// caller's NowFunc, never the library clock.
type Codec struct {
	keys   []SecretKey
	logger Logger
}

func NewCodec(keys []SecretKey, logger Logger) (*Codec, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one secret key is required", errors.CategoryBadInput)
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &Codec{keys: keys, logger: logger}, nil
}

// Encode signs {sub, iat, exp} with the primary key. ttl is in seconds and
// must be at least 1.
func (c *Codec) Encode(sub string, ttl int, nowfn NowFunc) (string, error) {
	if ttl < 1 {
		return "", errors.New("expiry must be at least 1 second", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	now := nowfn()
	tok := &AuthToken{
		Sub: sub,
		Iat: now.Unix(),
		Exp: now.Unix() + int64(ttl),
	}

	secret := c.keys[0]
	method := jwt.GetSigningMethod(secret.Algorithm)
	if method == nil {
		return "", errors.New("unknown signing algorithm: "+secret.Algorithm, errors.CategoryOperation)
	}

	signed, err := jwt.NewWithClaims(method, tok).SignedString([]byte(secret.Key))
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Decode verifies token against the configured keys in order. Library time
// validation is disabled; exp/nbf are checked manually against nowfn so the
// injected clock governs every time decision. Each per-key failure, whether
// signature or time based, moves on to the next key; once the list is
// exhausted the last error encountered wins.
func (c *Codec) Decode(token string, nowfn NowFunc) (*AuthToken, error) {
	var lastErr error

	for _, secret := range c.keys {
		tok := &AuthToken{}
		_, err := jwt.ParseWithClaims(token, tok, func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != secret.Algorithm {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret.Key), nil
		}, jwt.WithoutClaimsValidation())

		if err != nil {
			lastErr = err
			continue
		}

		now := nowfn().Unix()
		if tok.Nbf != nil && now < *tok.Nbf {
			lastErr = newNotYetValidError(tok.Sub)
			continue
		}
		if tok.Exp != 0 && now > tok.Exp {
			lastErr = newExpiredError(tok.Sub)
			continue
		}

		return tok, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}

	// Unclear how we would get here given the non-empty key invariant.
	return nil, ErrInvalidToken
}

// DecodeSession reinterprets a decoded token as the session credential. No
// additional validation happens here.
func (c *Codec) DecodeSession(token string, nowfn NowFunc) (*SessionToken, error) {
	tok, err := c.Decode(token, nowfn)
	if err != nil {
		return nil, err
	}
	session := SessionToken(*tok)
	return &session, nil
}
