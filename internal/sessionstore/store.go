package sessionstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no session exists for the given key.
var ErrNotFound = errors.New("session not found")

// Store maps host-keys and session-keys to Sessions (spec §4.2). A session's
// handler fields are process-local and never round-trip through a persisted
// Store: a gorm-backed Store persists only the data columns and rebuilds a
// fresh Session (with nil handlers) on Load, same as the pack's control
// plane store rehydrates rows without any in-process runtime state attached.
type Store interface {
	// Load returns the Session for a host-key, or ErrNotFound.
	Load(ctx context.Context, hostKey string) (*Session, error)
	// LoadFromSKey returns the Session whose SessionKey matches skey, or ErrNotFound.
	LoadFromSKey(ctx context.Context, skey string) (*Session, error)
	// Save upserts a Session keyed by its HostKey.
	Save(ctx context.Context, s *Session) error
	// Delete removes the Session for a host-key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, hostKey string) error
}

// New constructs a Store of the given kind: "memory" (default), "sqlite", or
// "postgres". sqlite/postgres take a DSN-like path/connection string.
func New(kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewGORMStore(DatabaseSQLite, dsn)
	case "postgres":
		return NewGORMStore(DatabasePostgres, dsn)
	default:
		return nil, errors.New("sessionstore: unknown manager kind " + kind)
	}
}
