package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Digest is the pluggable one-way password digest used by the credential
// store and the registration path.
type Digest interface {
	// Hash produces a digest suitable for persistence.
	Hash(password string) (string, error)
	// Compare checks a plaintext password against a stored digest.
	// A non-nil error means no match.
	Compare(digest, password string) error
}

// bcryptCost of 10 balances security and login latency.
const bcryptCost = 10

// BcryptDigest implements Digest with bcrypt.
type BcryptDigest struct {
	cost int
}

// NewBcryptDigest returns a bcrypt digest at the default cost.
func NewBcryptDigest() *BcryptDigest {
	return &BcryptDigest{cost: bcryptCost}
}

// Hash generates a bcrypt hash of the password.
func (b *BcryptDigest) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Compare compares a bcrypt digest with its plaintext version.
func (b *BcryptDigest) Compare(digest, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
}
