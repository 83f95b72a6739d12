package usermanager

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost mirrors the pack's default: a balance of security and
// per-request latency for an interactive login path.
const DefaultBcryptCost = 10

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 characters")
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt silently truncates beyond this
)

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if err := validatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
