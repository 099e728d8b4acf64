package identity

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"bulwark/pkg/platform/sentinel"
)

// Service-key helpers for the operational endpoints. Keys are generated once,
// handed to the operator, and stored only as bcrypt hashes.

// GenerateServiceKey creates a cryptographically secure random key,
// base64url-encoded for easy transport in headers.
func GenerateServiceKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate service key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashServiceKey creates a bcrypt hash of the provided key for storage.
func HashServiceKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("service key cannot be empty: %w", sentinel.ErrInvalidState)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("service key too long: %w", sentinel.ErrInvalidState)
		}
		return "", fmt.Errorf("could not hash service key: %w", err)
	}
	return string(hashed), nil
}

// VerifyServiceKey checks a plaintext key against a stored bcrypt hash.
// bcrypt's comparison is constant-time over the derived digest.
func VerifyServiceKey(key, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("service key mismatch: %w", sentinel.ErrInvalidState)
		}
		return fmt.Errorf("could not verify service key: %w", err)
	}
	return nil
}
