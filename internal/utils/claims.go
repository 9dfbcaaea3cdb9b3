package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenSignatureInvalid is returned when a token fails HMAC
	// verification or was signed with a different key.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned when a token's exp claim lies in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when a token cannot be parsed or its
	// claims are not in the expected shape.
	ErrTokenMalformed = errors.New("token malformed")
)

// ScopedToken issues and verifies HS256 tokens bound to one signing key
// and one expiry window. The password-change token and the email-change
// "change"/"resend" pair are all instances with different keys, so two
// tokens carrying identical claims are still rejected by each other's
// verifier.
//
// Decode runs with the library's automatic lifetime validation turned
// off and compares exp against the clock itself. That keeps expiry a
// domain-level ErrTokenExpired rather than a library parse error, which
// callers map to their own error kinds.
type ScopedToken struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewScopedToken builds a ScopedToken for the given key and lifetime.
func NewScopedToken(secret string, ttl time.Duration) *ScopedToken {
	return &ScopedToken{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (s *ScopedToken) WithClock(now func() time.Time) *ScopedToken {
	s.now = now
	return s
}

// TTL reports the configured lifetime of issued tokens.
func (s *ScopedToken) TTL() time.Duration { return s.ttl }

// Issue signs the given string claims plus an exp claim set ttl from now.
func (s *ScopedToken) Issue(claims map[string]string) (string, error) {
	mc := jwt.MapClaims{"exp": s.now().UTC().Add(s.ttl).Unix()}
	for k, v := range claims {
		mc[k] = v
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	return t.SignedString(s.secret)
}

// Decode verifies the signature, then manually enforces expiry and
// returns the string claims. The signature is always checked, including
// at redemption time; expiry and signature failures are distinguished.
func (s *ScopedToken) Decode(raw string) (map[string]string, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrTokenSignatureInvalid
		}
		return nil, ErrTokenMalformed
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}

	exp, ok := mc["exp"].(float64)
	if !ok {
		return nil, ErrTokenMalformed
	}
	if s.now().UTC().After(time.Unix(int64(exp), 0)) {
		return nil, ErrTokenExpired
	}

	out := make(map[string]string, len(mc))
	for k, v := range mc {
		if sv, ok := v.(string); ok {
			out[k] = sv
		}
	}
	return out, nil
}
