package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest password Register accepts.
	MinPasswordLength = 6
	// DefaultPasswordCost is the bcrypt cost used when none is configured.
	DefaultPasswordCost = 10
	// maxPasswordBytes is the bcrypt input limit.
	maxPasswordBytes = 72
)

// passwords hashes and verifies account passwords with bcrypt.
type passwords struct {
	cost int
}

func newPasswords(cost int) passwords {
	if cost == 0 {
		cost = DefaultPasswordCost
	}
	cost = max(bcrypt.MinCost, min(cost, bcrypt.MaxCost))
	return passwords{cost: cost}
}

// hash checks the password policy and returns the bcrypt hash.
func (p passwords) hash(password string) (string, error) {
	if len(password) < MinPasswordLength || len(password) > maxPasswordBytes {
		return "", ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// verify reports ErrInvalidCredentials when password does not match hash.
func (p passwords) verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}
