// Package usermanager implements the external User Manager collaborator
// (spec §6): authenticate(u,p) -> bool, userdir(u) -> string|null. Pluggable
// by configuration string, grounded on the credential/admin patterns used
// throughout the example pack's identity code.
package usermanager

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// UserManager authenticates users and resolves their on-disk directory name.
type UserManager interface {
	// Authenticate verifies username/password credentials.
	Authenticate(ctx context.Context, username, password string) bool

	// UserDir resolves username to its on-disk directory name under DataRoot.
	// Returns ok=false if the user does not exist.
	UserDir(ctx context.Context, username string) (dir string, ok bool)

	// CreateUser provisions a new user with the given password, stored as a
	// bcrypt hash. Used by the CLI's `user add` command.
	CreateUser(ctx context.Context, username, password string) error

	// DeleteUser removes a user.
	DeleteUser(ctx context.Context, username string) error

	// SetPassword changes an existing user's password.
	SetPassword(ctx context.Context, username, password string) error

	// ListUsernames returns every known username.
	ListUsernames(ctx context.Context) ([]string, error)
}

// New selects a UserManager implementation by configuration string, per the
// spec's pluggable-managers Design Note: an explicitly enumerated set chosen
// at process start, never runtime class loading.
func New(kind string, sqlitePath string) (UserManager, error) {
	switch kind {
	case "sqlite", "":
		return NewSQLiteUserManager(sqlitePath)
	case "static":
		return NewStaticUserManager(), nil
	default:
		return nil, errors.New("unknown user_manager: " + kind)
	}
}
