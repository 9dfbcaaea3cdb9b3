package utils // package utils provides token creation and password hashing helpers

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/traincore/lms-platform/internal/model"
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are stateless: once issued they stay valid until exp,
// regardless of logout or later role changes. The refresh-token side
// compensates by revoking on role change.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user. The subject
// is the immutable user id; the first name travels only as a display
// claim. Every token carries a unique jti.
func NewAccessToken(secret, issuer, audience string, u model.User, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"jti":   uuid.NewString(),
		"email": u.Email,
		"role":  u.Role,
		"name":  u.FirstName,
		"iss":   issuer,
		"aud":   audience,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshTokenValue returns the opaque refresh token form: 64 bytes
// of cryptographically secure random data, base64-encoded. Uniqueness
// against the store is enforced by the caller plus a UNIQUE column.
func NewRefreshTokenValue() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
