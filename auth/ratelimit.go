package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkomarek/atelier/storage"
)

const (
	// attemptWindow is the trailing interval over which failed attempts
	// are counted.
	attemptWindow = 5 * time.Minute
	// maxFailedAttempts is the failure count at which further attempts
	// for the same identity are blocked.
	maxFailedAttempts = 5
)

// RateLimiter throttles brute-force code guessing per client network
// identity. State lives entirely in the persistent attempt log, so
// decisions are a pure function of rows within the trailing window.
//
// Two concurrent checks for the same identity may both pass before either
// attempt row is visible; the limiter is a deterrent layered on top of the
// cryptographic check, not a hard boundary on its own.
type RateLimiter struct {
	store storage.Store
	now   func() time.Time
}

// NewRateLimiter creates a rate limiter over the given store.
func NewRateLimiter(store storage.Store) *RateLimiter {
	return &RateLimiter{store: store, now: time.Now}
}

// Record appends an attempt row, always, regardless of outcome.
func (rl *RateLimiter) Record(identity, action string, success bool) error {
	attempt := storage.Attempt{
		ID:        uuid.NewString(),
		Identity:  identity,
		Action:    action,
		Success:   success,
		CreatedAt: rl.now().UTC(),
	}
	if err := rl.store.AppendAttempt(attempt); err != nil {
		return fmt.Errorf("recording auth attempt: %w", err)
	}
	return nil
}

// Check reports whether the identity is currently blocked, along with the
// number of recent failures. A blocked check is not itself logged as an
// attempt.
func (rl *RateLimiter) Check(identity string) (blocked bool, failures int, err error) {
	since := rl.now().Add(-attemptWindow)
	failures, err = rl.store.CountFailedAttempts(identity, since)
	if err != nil {
		return false, 0, fmt.Errorf("counting failed attempts: %w", err)
	}
	return failures >= maxFailedAttempts, failures, nil
}
