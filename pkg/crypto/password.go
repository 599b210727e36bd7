package crypto

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrTokenMismatch is returned when a presented token does not match the stored hash.
var ErrTokenMismatch = errors.New("crypto: token mismatch")

// HashToken hashes an operator token using bcrypt for storage in configuration.
func HashToken(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// VerifyToken compares a presented token to a bcrypt hash. An empty hash never matches.
func VerifyToken(hash, plain string) error {
	hash = strings.TrimSpace(hash)
	if hash == "" || plain == "" {
		return ErrTokenMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return ErrTokenMismatch
	}
	return nil
}
