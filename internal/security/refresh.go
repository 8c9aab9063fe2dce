package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const refreshSecretBytes = 32

// ErrMalformedRefreshSecret is returned when an encoded refresh secret does
// not carry a session id and secret part.
var ErrMalformedRefreshSecret = errors.New("malformed refresh secret")

// GenerateRefreshSecret returns a cryptographically random refresh secret as
// a base64url string (43 characters). The caller hashes it before storage.
func GenerateRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshSecret returns a SHA-256 hash of the secret, hex-encoded.
// Only the hash is stored server-side.
func HashRefreshSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// RefreshSecretEqual performs constant-time comparison of the provided
// secret's hash with the stored hash. Returns true only if they match.
func RefreshSecretEqual(providedSecret, storedHash string) bool {
	providedHash := HashRefreshSecret(providedSecret)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}

// EncodeRefreshSecret joins the session id and secret into the opaque value
// handed to clients. The session id rides alongside the secret so lookup does
// not depend on trusting the secret's authenticity.
func EncodeRefreshSecret(sessionID, secret string) string {
	return sessionID + "." + secret
}

// DecodeRefreshSecret splits an encoded refresh secret into session id and
// secret part. Returns ErrMalformedRefreshSecret when either part is empty.
func DecodeRefreshSecret(encoded string) (sessionID, secret string, err error) {
	sessionID, secret, ok := strings.Cut(encoded, ".")
	if !ok || sessionID == "" || secret == "" {
		return "", "", ErrMalformedRefreshSecret
	}
	return sessionID, secret, nil
}
