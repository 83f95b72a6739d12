package usermanager

import (
	"context"
	"sync"
)

// StaticUserManager is an in-memory UserManager with no persistence,
// acceptable per spec §4.2 ("a pure-memory implementation is acceptable")
// and useful for tests and single-shot deployments.
type StaticUserManager struct {
	mu    sync.RWMutex
	users map[string]string // username -> bcrypt hash
}

func NewStaticUserManager() *StaticUserManager {
	return &StaticUserManager{users: make(map[string]string)}
}

func (m *StaticUserManager) Authenticate(ctx context.Context, username, password string) bool {
	m.mu.RLock()
	hash, ok := m.users[username]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return verifyPassword(password, hash)
}

func (m *StaticUserManager) UserDir(ctx context.Context, username string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[username]
	if !ok {
		return "", false
	}
	return username, true
}

func (m *StaticUserManager) CreateUser(ctx context.Context, username, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; exists {
		return ErrDuplicateUser
	}
	m.users[username] = hash
	return nil
}

func (m *StaticUserManager) DeleteUser(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *StaticUserManager) SetPassword(ctx context.Context, username, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return ErrUserNotFound
	}
	m.users[username] = hash
	return nil
}

func (m *StaticUserManager) ListUsernames(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.users))
	for u := range m.users {
		names = append(names, u)
	}
	return names, nil
}

var _ UserManager = (*StaticUserManager)(nil)
