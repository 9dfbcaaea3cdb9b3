package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 10000
	saltBytes        = 16 // 128-bit salt
	keyBytes         = 32 // 256-bit derived key
)

// HashPassword derives a PBKDF2-HMAC-SHA256 key from the plain password
// using a fresh random salt and encodes the pair as
// "base64(key):base64(salt)". Only this form is ever persisted.
func HashPassword(plain string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return HashPasswordWithSalt(plain, salt) + ":" + base64.StdEncoding.EncodeToString(salt), nil
}

// HashPasswordWithSalt returns only the base64 derived key for the given
// salt, without the salt suffix. Verification recomputes this form from
// the stored salt and compares it against the stored key.
func HashPasswordWithSalt(plain string, salt []byte) string {
	key := pbkdf2.Key([]byte(plain), salt, pbkdf2Iterations, keyBytes, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// VerifyPassword checks a candidate password against a stored
// "key:salt" value. It fails closed: a malformed stored value or an
// undecodable salt yields false, never an error. The comparison is
// constant-time.
func VerifyPassword(stored, candidate string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	computed := HashPasswordWithSalt(candidate, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(parts[0])) == 1
}
