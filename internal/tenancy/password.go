package tenancy

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier checks a plaintext password against a stored hash.
// The core only cares about the boolean outcome.
type CredentialVerifier interface {
	Verify(hash, password string) bool
}

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// BcryptVerifier is the default CredentialVerifier.
type BcryptVerifier struct{}

// Verify compares plaintext password with the stored bcrypt hash.
func (BcryptVerifier) Verify(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
