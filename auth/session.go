package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/nkomarek/atelier/internal/util"
	"github.com/nkomarek/atelier/storage"
)

const (
	// sessionTTL is the fixed session lifetime, reset on every
	// authorized use (sliding expiration).
	sessionTTL = 30 * time.Minute
	// sessionTokenBytes gives 256 bits of token entropy.
	sessionTokenBytes = 32
)

// SessionManager owns the lifecycle of opaque bearer session tokens.
// Sessions are never revoked individually; expiry is purely time-based.
type SessionManager struct {
	store storage.Store
	now   func() time.Time
}

// NewSessionManager creates a session manager over the given store.
func NewSessionManager(store storage.Store) *SessionManager {
	return &SessionManager{store: store, now: time.Now}
}

// Create issues a new high-entropy session token with a 30-minute TTL.
// As a side effect it purges all sessions that have already expired;
// there is no scheduled reaper. The purge and the insert are two
// independent operations; a concurrent create may also purge, which is
// harmless since deletion of expired rows is idempotent.
func (m *SessionManager) Create() (string, error) {
	now := m.now()
	if _, err := m.store.DeleteSessionsExpiredBefore(now); err != nil {
		return "", fmt.Errorf("purging expired sessions: %w", err)
	}

	raw, err := util.RandomBytes(sessionTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := util.HexEncode(raw)

	session := storage.Session{
		Token:     token,
		CreatedAt: now.UTC(),
		ExpiresAt: now.UTC().Add(sessionTTL),
	}
	if err := m.store.PutSession(session); err != nil {
		return "", fmt.Errorf("persisting session: %w", err)
	}
	return token, nil
}

// Valid reports whether the token exists and has not expired. Unknown
// tokens are not an error. The predicate is re-evaluated against the store
// on every call; validity is never cached.
func (m *SessionManager) Valid(token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	session, err := m.store.GetSession(token)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up session: %w", err)
	}
	return m.now().Before(session.ExpiresAt), nil
}

// Extend slides the session expiry to 30 minutes from now. A token that no
// longer exists is a no-op.
func (m *SessionManager) Extend(token string) error {
	session, err := m.store.GetSession(token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up session: %w", err)
	}
	session.ExpiresAt = m.now().UTC().Add(sessionTTL)
	if err := m.store.PutSession(session); err != nil {
		return fmt.Errorf("extending session: %w", err)
	}
	return nil
}
