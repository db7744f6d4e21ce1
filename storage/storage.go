// Package storage provides the persistence abstraction for the atelier
// backend: the legacy settings tier, the restricted config tier, session
// records, the append-only auth attempt log, and generic content records.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Session is the server-side state for an issued admin session. The token
// is the only credential a client holds; there is no user linkage beyond
// "the one admin".
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Attempt is one row of the append-only verification attempt log. Rows are
// write-once: the running system never mutates or deletes them.
type Attempt struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the persistence interface. All security-relevant state
// (secret, sessions, attempt log) lives here; callers perform no caching
// across requests.
type Store interface {
	// Legacy settings tier: a shared key/value table also holding
	// non-sensitive site settings.
	GetSetting(key string) (string, error)
	PutSetting(key, value string) error
	ListSettings() (map[string]string, error)

	// Restricted config tier: the authoritative home of the TOTP secret,
	// reachable only by the backend principal.
	GetSecureValue(key string) (string, error)
	PutSecureValue(key, value string) error

	// Sessions, keyed by token. PutSession is an upsert.
	PutSession(s Session) error
	GetSession(token string) (Session, error)
	DeleteSessionsExpiredBefore(cutoff time.Time) (int, error)

	// Attempt log, indexed by identity and time-descending.
	AppendAttempt(a Attempt) error
	CountFailedAttempts(identity string, since time.Time) (int, error)

	// Content records (projects, products, orders), stored as opaque
	// JSON blobs keyed by kind and id.
	PutRecord(kind, id string, data []byte) error
	GetRecord(kind, id string) ([]byte, error)
	ListRecords(kind string) ([][]byte, error)
	DeleteRecord(kind, id string) error
}
