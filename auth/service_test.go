package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkomarek/atelier/auth"
	"github.com/nkomarek/atelier/storage/memory"
)

// fakeClock is a settable time source shared by a test and the service
// under test.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newService(t *testing.T) (*auth.Service, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.New()
	clock := newFakeClock()
	return auth.NewService(store, auth.WithClock(clock.now)), store, clock
}

// enroll provisions a fresh secret through Setup and returns it with the
// issued session token.
func enroll(t *testing.T, svc *auth.Service, clock *fakeClock) (secret, token string) {
	t.Helper()
	secret, err := svc.GenerateSecret()
	require.NoError(t, err)
	code := auth.Code(auth.DecodeSecret(secret), clock.now())
	token, err = svc.Setup(secret, code)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	return secret, token
}

func TestSetupTransition(t *testing.T) {
	svc, _, clock := newService(t)

	configured, err := svc.Configured()
	require.NoError(t, err)
	assert.False(t, configured, "fresh system must be unconfigured")

	enroll(t, svc, clock)

	configured, err = svc.Configured()
	require.NoError(t, err)
	assert.True(t, configured, "setup must transition to configured")
}

func TestSetupValidation(t *testing.T) {
	svc, _, clock := newService(t)

	_, err := svc.Setup("", "123456")
	assert.ErrorIs(t, err, auth.ErrMissingInput)

	_, err = svc.Setup("JBSWY3DP", "")
	assert.ErrorIs(t, err, auth.ErrMissingInput)

	// A code that does not match the candidate secret is rejected and the
	// secret stays unprovisioned.
	wrong := auth.Code(auth.DecodeSecret("JBSWY3DP"), clock.now().Add(-5*time.Minute))
	_, err = svc.Setup("JBSWY3DP", wrong)
	assert.ErrorIs(t, err, auth.ErrInvalidCode)

	configured, err := svc.Configured()
	require.NoError(t, err)
	assert.False(t, configured)
}

func TestSetupOverwritesSecret(t *testing.T) {
	svc, _, clock := newService(t)
	first, _ := enroll(t, svc, clock)
	second, _ := enroll(t, svc, clock)
	require.NotEqual(t, first, second)

	// Codes from the first secret no longer verify.
	stale := auth.Code(auth.DecodeSecret(first), clock.now())
	fresh := auth.Code(auth.DecodeSecret(second), clock.now())
	outcome, err := svc.Verify("1.2.3.4", fresh)
	require.NoError(t, err)
	assert.True(t, outcome.Valid)
	if stale != fresh {
		outcome, err = svc.Verify("1.2.3.4", stale)
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
	}
}

func TestVerifyUnconfigured(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Verify("1.2.3.4", "123456")
	assert.ErrorIs(t, err, auth.ErrNotConfigured)
}

func TestVerifyMissingCode(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Verify("1.2.3.4", "")
	assert.ErrorIs(t, err, auth.ErrMissingInput)
}

func TestVerifyIssuesSession(t *testing.T) {
	svc, _, clock := newService(t)
	secret, _ := enroll(t, svc, clock)

	code := auth.Code(auth.DecodeSecret(secret), clock.now())
	outcome, err := svc.Verify("1.2.3.4", code)
	require.NoError(t, err)
	assert.True(t, outcome.Valid)
	require.NotEmpty(t, outcome.Token)

	valid, err := svc.ValidateSession(outcome.Token)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestVerifyRateLimitThreshold(t *testing.T) {
	svc, store, clock := newService(t)
	enroll(t, svc, clock)

	// Five failures within the window block the sixth attempt.
	for i := 0; i < 5; i++ {
		outcome, err := svc.Verify("10.0.0.1", "000000")
		require.NoError(t, err)
		assert.False(t, outcome.Valid)
		assert.False(t, outcome.RateLimited)
	}
	logged := store.AttemptCount()

	outcome, err := svc.Verify("10.0.0.1", "000000")
	require.NoError(t, err)
	assert.True(t, outcome.RateLimited)
	assert.Equal(t, logged, store.AttemptCount(),
		"a blocked attempt must not be double-logged")

	// A different identity in the same window is unaffected.
	outcome, err = svc.Verify("10.0.0.2", "000000")
	require.NoError(t, err)
	assert.False(t, outcome.RateLimited)

	// The block lifts once the trailing window has elapsed.
	clock.advance(5*time.Minute + time.Second)
	outcome, err = svc.Verify("10.0.0.1", "000000")
	require.NoError(t, err)
	assert.False(t, outcome.RateLimited)
}

func TestSessionTTLAndSlidingRenewal(t *testing.T) {
	svc, _, clock := newService(t)
	_, token := enroll(t, svc, clock)

	clock.advance(29 * time.Minute)
	valid, err := svc.ValidateSession(token)
	require.NoError(t, err)
	assert.True(t, valid, "session must be valid at t0+29m")

	// Validation slid the expiry forward; another 29 minutes is fine.
	clock.advance(29 * time.Minute)
	valid, err = svc.ValidateSession(token)
	require.NoError(t, err)
	assert.True(t, valid)

	clock.advance(31 * time.Minute)
	valid, err = svc.ValidateSession(token)
	require.NoError(t, err)
	assert.False(t, valid, "idle session must expire after 30m")
}

func TestSessionUntouchedExpires(t *testing.T) {
	svc, _, clock := newService(t)
	_, token := enroll(t, svc, clock)

	clock.advance(31 * time.Minute)
	valid, err := svc.ValidateSession(token)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestValidateSessionUnknownToken(t *testing.T) {
	svc, _, _ := newService(t)
	valid, err := svc.ValidateSession("no-such-token")
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = svc.ValidateSession("")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestAuthorizeGate(t *testing.T) {
	svc, _, clock := newService(t)
	_, token := enroll(t, svc, clock)

	require.NoError(t, svc.Authorize(token))

	assert.ErrorIs(t, svc.Authorize(""), auth.ErrSessionExpired)
	assert.ErrorIs(t, svc.Authorize("garbage"), auth.ErrSessionExpired)

	clock.advance(31 * time.Minute)
	assert.ErrorIs(t, svc.Authorize(token), auth.ErrSessionExpired)
}

func TestCreatePurgesExpiredSessions(t *testing.T) {
	svc, store, clock := newService(t)
	enroll(t, svc, clock)
	require.Equal(t, 1, store.SessionCount())

	clock.advance(31 * time.Minute)
	// The next session creation opportunistically deletes the expired one.
	enroll(t, svc, clock)
	assert.Equal(t, 1, store.SessionCount())
}
