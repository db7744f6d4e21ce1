// Package auth implements the admin authentication subsystem: TOTP secret
// provisioning and verification with clock-drift tolerance, brute-force
// rate limiting over a persistent attempt log, and short-lived bearer
// session tokens with sliding expiration.
package auth

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nkomarek/atelier/storage"
)

// VerifyOutcome is the result of a Verify call.
type VerifyOutcome struct {
	// Valid is true when the submitted code matched and a session was
	// issued.
	Valid bool
	// RateLimited is true when the identity was blocked before the code
	// was even evaluated.
	RateLimited bool
	// Failures is the recent failure count for the identity, for UX
	// messaging only.
	Failures int
	// Token is the issued session token; set only when Valid.
	Token string
}

// Service composes the TOTP engine, rate limiter, secret accessor, and
// session manager into the externally callable verification protocol.
type Service struct {
	secrets  *SecretStore
	sessions *SessionManager
	limiter  *RateLimiter
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger used for non-fatal persistence
// warnings. If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.secrets.logger = logger
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.sessions.now = now
		s.limiter.now = now
	}
}

// NewService creates a verification service over the given store.
func NewService(store storage.Store, opts ...Option) *Service {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	s := &Service{
		secrets:  NewSecretStore(store, logger),
		sessions: NewSessionManager(store),
		limiter:  NewRateLimiter(store),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether a shared secret has been provisioned. It never
// reveals the secret itself.
func (s *Service) Configured() (bool, error) {
	return s.secrets.Configured()
}

// GenerateSecret returns a fresh candidate secret for enrollment display.
// Nothing is persisted until Setup succeeds with it.
func (s *Service) GenerateSecret() (string, error) {
	return GenerateSecret()
}

// Setup provisions a candidate secret after independently re-checking the
// enrollment code against it, then issues a session. This is the only
// transition out of the unconfigured state. A later setup overwrites the
// secret and invalidates all previously enrolled authenticator apps.
func (s *Service) Setup(secret, code string) (string, error) {
	if secret == "" || code == "" {
		return "", ErrMissingInput
	}
	if !VerifyCode(code, DecodeSecret(secret), s.now()) {
		return "", ErrInvalidCode
	}
	if err := s.secrets.Set(secret); err != nil {
		return "", err
	}
	token, err := s.sessions.Create()
	if err != nil {
		return "", fmt.Errorf("creating setup session: %w", err)
	}
	return token, nil
}

// Verify runs the full verification protocol for one submitted code:
// rate-limit gate first, then secret lookup, then code evaluation with
// drift tolerance. The attempt is logged regardless of outcome; a
// rate-limited rejection is not logged, so the block itself does not
// consume an attempt.
func (s *Service) Verify(identity, code string) (VerifyOutcome, error) {
	if code == "" {
		return VerifyOutcome{}, ErrMissingInput
	}

	blocked, failures, err := s.limiter.Check(identity)
	if err != nil {
		return VerifyOutcome{}, err
	}
	if blocked {
		return VerifyOutcome{RateLimited: true, Failures: failures}, nil
	}

	secret, err := s.secrets.Get()
	if err != nil {
		return VerifyOutcome{}, err
	}
	if secret == "" {
		return VerifyOutcome{}, ErrNotConfigured
	}

	ok := VerifyCode(code, DecodeSecret(secret), s.now())
	if err := s.limiter.Record(identity, "verify", ok); err != nil {
		return VerifyOutcome{}, err
	}
	if !ok {
		return VerifyOutcome{Failures: failures + 1}, nil
	}

	token, err := s.sessions.Create()
	if err != nil {
		return VerifyOutcome{}, err
	}
	return VerifyOutcome{Valid: true, Token: token}, nil
}

// ValidateSession reports whether the token is currently valid and, when it
// is, slides its expiry forward.
func (s *Service) ValidateSession(token string) (bool, error) {
	valid, err := s.sessions.Valid(token)
	if err != nil || !valid {
		return false, err
	}
	if err := s.sessions.Extend(token); err != nil {
		return false, err
	}
	return true, nil
}

// Authorize is the gate in front of every privileged operation: it requires
// a valid, non-expired session and extends it on success. It returns
// ErrSessionExpired for a missing, unknown, or expired token.
func (s *Service) Authorize(token string) error {
	valid, err := s.sessions.Valid(token)
	if err != nil {
		return err
	}
	if !valid {
		return ErrSessionExpired
	}
	return s.sessions.Extend(token)
}
