// Package bbolt provides a BBolt-backed storage.Store.
package bbolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/nkomarek/atelier/storage"
)

var (
	bucketSettings = []byte("settings")
	bucketSecure   = []byte("secure_config")
	bucketSessions = []byte("sessions")
	bucketAttempts = []byte("auth_attempts")
	bucketRecords  = []byte("records")
)

// Store implements storage.Store backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Store = (*Store)(nil)

// New returns a Store backed by the given BBolt database, creating the
// required buckets if they do not exist.
func New(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSettings, bucketSecure, bucketSessions, bucketAttempts, bucketRecords} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromFile opens a BBolt database at the given path and returns a new Store.
func NewFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return New(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) getKV(bucket []byte, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", bucket, key, storage.ErrNotFound)
		}
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) putKV(bucket []byte, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), []byte(value))
	})
}

func (s *Store) GetSetting(key string) (string, error) {
	return s.getKV(bucketSettings, key)
}

func (s *Store) PutSetting(key, value string) error {
	return s.putKV(bucketSettings, key, value)
}

func (s *Store) ListSettings() (map[string]string, error) {
	settings := make(map[string]string)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).ForEach(func(k, v []byte) error {
			settings[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Store) GetSecureValue(key string) (string, error) {
	return s.getKV(bucketSecure, key)
}

func (s *Store) PutSecureValue(key, value string) error {
	return s.putKV(bucketSecure, key, value)
}

func (s *Store) PutSession(session storage.Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSessions).Put([]byte(session.Token), data)
	})
}

func (s *Store) GetSession(token string) (storage.Session, error) {
	var session storage.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(token))
		if data == nil {
			return fmt.Errorf("session: %w", storage.ErrNotFound)
		}
		return json.Unmarshal(data, &session)
	})
	if err != nil {
		return storage.Session{}, err
	}
	return session, nil
}

func (s *Store) DeleteSessionsExpiredBefore(cutoff time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		c := b.Cursor()
		var expired [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var session storage.Session
			if err := json.Unmarshal(v, &session); err != nil {
				continue
			}
			if session.ExpiresAt.Before(cutoff) {
				expired = append(expired, append([]byte(nil), k...))
			}
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// attemptKey orders attempts by identity then time so that per-identity
// window queries are a single prefix scan.
func attemptKey(a storage.Attempt) []byte {
	return []byte(fmt.Sprintf("%s|%020d|%s", a.Identity, a.CreatedAt.UnixNano(), a.ID))
}

func (s *Store) AppendAttempt(a storage.Attempt) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAttempts).Put(attemptKey(a), data)
	})
}

func (s *Store) CountFailedAttempts(identity string, since time.Time) (int, error) {
	count := 0
	prefix := []byte(identity + "|")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAttempts).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var a storage.Attempt
			if err := json.Unmarshal(v, &a); err != nil {
				continue
			}
			if !a.Success && !a.CreatedAt.Before(since) {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func recordKey(kind, id string) []byte {
	return []byte(kind + ":" + id)
}

func (s *Store) PutRecord(kind, id string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Put(recordKey(kind, id), data)
	})
}

func (s *Store) GetRecord(kind, id string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketRecords).Get(recordKey(kind, id))
		if v == nil {
			return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) ListRecords(kind string) ([][]byte, error) {
	var records [][]byte
	prefix := []byte(kind + ":")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			records = append(records, append([]byte(nil), v...))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) DeleteRecord(kind, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		key := recordKey(kind, id)
		if b.Get(key) == nil {
			return fmt.Errorf("%s/%s: %w", kind, id, storage.ErrNotFound)
		}
		return b.Delete(key)
	})
}
