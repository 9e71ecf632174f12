// Package crypto hashes account passwords with bcrypt.
package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"drive-go/internal/drive"
)

// MinPasswordLength is the shortest password Hash accepts.
const MinPasswordLength = 8

// BcryptHasher implements drive.PasswordHasher.
type BcryptHasher struct {
	cost int
}

var _ drive.PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher with the given cost; 0 means bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash rejects passwords shorter than MinPasswordLength or longer than the
// 72 bytes bcrypt can use.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", drive.ValidationError("hash password", "password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", drive.ValidationError("hash password", "password must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Compare returns nil when password matches hash.
func (h *BcryptHasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return drive.AuthorizationError("compare password", "password mismatch")
		}
		return fmt.Errorf("comparing password: %w", err)
	}
	return nil
}
