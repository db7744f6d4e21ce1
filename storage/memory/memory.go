// Package memory provides an in-memory storage.Store for tests.
package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nkomarek/atelier/storage"
)

// Store is a thread-safe in-memory storage.Store. All data is lost on
// process exit; it exists for tests and local experimentation.
type Store struct {
	mu       sync.RWMutex
	settings map[string]string
	secure   map[string]string
	sessions map[string]storage.Session
	attempts []storage.Attempt
	records  map[string][]byte
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		settings: make(map[string]string),
		secure:   make(map[string]string),
		sessions: make(map[string]storage.Session),
		records:  make(map[string][]byte),
	}
}

func (s *Store) GetSetting(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	if !ok {
		return "", fmt.Errorf("settings/%s: %w", key, storage.ErrNotFound)
	}
	return v, nil
}

func (s *Store) PutSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *Store) ListSettings() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *Store) GetSecureValue(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secure[key]
	if !ok {
		return "", fmt.Errorf("secure_config/%s: %w", key, storage.ErrNotFound)
	}
	return v, nil
}

func (s *Store) PutSecureValue(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secure[key] = value
	return nil
}

func (s *Store) PutSession(session storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session
	return nil
}

func (s *Store) GetSession(token string) (storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return storage.Session{}, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return session, nil
}

func (s *Store) DeleteSessionsExpiredBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for token, session := range s.sessions {
		if session.ExpiresAt.Before(cutoff) {
			delete(s.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) AppendAttempt(a storage.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *Store) CountFailedAttempts(identity string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.attempts {
		if a.Identity == identity && !a.Success && !a.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// AttemptCount reports the total number of logged attempts. Test helper.
func (s *Store) AttemptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// SessionCount reports the number of stored sessions. Test helper.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func recordKey(kind, id string) string {
	return kind + ":" + id
}

func (s *Store) PutRecord(kind, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(kind, id)] = append([]byte(nil), data...)
	return nil
}

func (s *Store) GetRecord(kind, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[recordKey(kind, id)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) ListRecords(kind string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := kind + ":"
	keys := make([]string, 0)
	for k := range s.records {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	records := make([][]byte, 0, len(keys))
	for _, k := range keys {
		records = append(records, append([]byte(nil), s.records[k]...))
	}
	return records, nil
}

func (s *Store) DeleteRecord(kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey(kind, id)
	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
	}
	delete(s.records, key)
	return nil
}
