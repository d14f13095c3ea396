// Package session manages server-tracked refresh tokens and the browser
// cookie that carries them. Each user holds at most one live refresh token;
// issuing a new one rotates the stored row in place.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidToken is returned when a presented refresh token does not match
// the stored token for the user, or the stored token has expired.
var ErrInvalidToken = errors.New("invalid or expired refresh token")

// RefreshToken is the stored server-side half of a session. Only the SHA-256
// hash of the opaque value is persisted.
type RefreshToken struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewToken generates an opaque refresh token value with 256 bits of entropy,
// base64url-encoded.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the hex-encoded SHA-256 hash of a plaintext token.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
