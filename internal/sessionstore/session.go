// Package sessionstore implements the Session Store (spec §4.2): maps
// host-key -> Session and session-key -> Session, pluggable between a
// pure-memory implementation and gorm-backed sqlite/postgres persistence,
// grounded on the example pack's pluggable-dialect control plane store.
package sessionstore

import (
	"crypto/md5"
	"crypto/sha1"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/ankisyncd/ankisyncd-go/internal/syncutil"
)

// Session is the per-user sync session (spec §3). HostKey is the long-lived
// collection-sync token; SessionKey is the short media-sync token. The two
// handler fields are untyped (any); the dispatcher type-asserts them to
// *collectionsync.Handler and *mediasync.Handler.
type Session struct {
	HostKey         string
	SessionKey      string
	Username        string
	UserDir         string
	ProtocolVersion int
	ClientVersion   string
	CreatedAt       time.Time

	mu                sync.Mutex
	CollectionHandler any
	MediaHandler      any
}

// Lock/Unlock guard the handler fields: the dispatcher reads and writes them
// from inside the jobs it submits to the worker serving that session's
// collection path, and a session-local mutex (not the store's map lock)
// protects them there.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// NewSession constructs a Session with a freshly generated session-key.
func NewSession(hostKey, username, userDir string) *Session {
	return &Session{
		HostKey:    hostKey,
		SessionKey: generateSessionKey(),
		Username:   username,
		UserDir:    userDir,
		CreatedAt:  time.Now(),
	}
}

// GenerateHostKey produces md5(username ":" now-unix-seconds ":" 8-random-alphanumeric),
// ground-truthed against ankisyncd/sync_app.py generateHostKey.
func GenerateHostKey(username string) string {
	raw := fmt.Sprintf("%s:%d:%s", username, syncutil.Now(), randomAlphanumeric(8))
	sum := md5.Sum([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// generateSessionKey produces the first 8 hex digits of sha1(random-float-string),
// ground-truthed against ankisyncd/sync_app.py SyncUserSession.__init__.
func generateSessionKey() string {
	raw := strconv.FormatFloat(rand.Float64(), 'f', -1, 64)
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%x", sum)[:8]
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlphanumeric(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return string(b)
}
