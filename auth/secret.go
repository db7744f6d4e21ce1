package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nkomarek/atelier/storage"
)

// SecretKey is the fixed key under which the shared TOTP secret is stored
// in both tiers. The matching settings-tier entry is reserved and is not
// reachable through the site settings surface.
const SecretKey = "totp_secret"

// SecretStore is the single point of read/write for the shared TOTP secret
// across the migration from the legacy settings tier to the restricted
// config tier.
type SecretStore struct {
	store  storage.Store
	logger *slog.Logger
}

// NewSecretStore creates a secret accessor over the given store.
func NewSecretStore(store storage.Store, logger *slog.Logger) *SecretStore {
	return &SecretStore{store: store, logger: logger}
}

// Get returns the shared secret, reading the restricted tier first and
// falling back to the legacy settings tier for deployments that have not
// migrated. An empty string means no secret is configured.
//
// TODO: drop the legacy fallback once all deployments carry the secret in
// the restricted tier.
func (s *SecretStore) Get() (string, error) {
	value, err := s.store.GetSecureValue(SecretKey)
	if err == nil && value != "" {
		return value, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("reading totp secret: %w", err)
	}

	value, err = s.store.GetSetting(SecretKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading legacy totp secret: %w", err)
	}
	return value, nil
}

// Set writes the secret to the restricted tier as the source of truth and
// mirrors it to the legacy tier for any still-dependent reader. Failure of
// the authoritative write is fatal; failure of the mirror write is logged
// and swallowed.
func (s *SecretStore) Set(value string) error {
	if err := s.store.PutSecureValue(SecretKey, value); err != nil {
		return fmt.Errorf("persisting totp secret: %w", err)
	}
	if err := s.store.PutSetting(SecretKey, value); err != nil {
		s.logger.Warn("mirroring totp secret to legacy settings tier failed",
			slog.String("error", err.Error()))
	}
	return nil
}

// Configured reports whether a non-empty secret exists, without exposing
// the value.
func (s *SecretStore) Configured() (bool, error) {
	value, err := s.Get()
	if err != nil {
		return false, err
	}
	return value != "", nil
}
