package bbolt_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkomarek/atelier/storage"
	bboltstorage "github.com/nkomarek/atelier/storage/bbolt"
)

func newStore(t *testing.T) *bboltstorage.Store {
	t.Helper()
	store, err := bboltstorage.NewFromFile(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSettingsTiers(t *testing.T) {
	store := newStore(t)

	_, err := store.GetSetting("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.PutSetting("site_title", "Atelier"))
	v, err := store.GetSetting("site_title")
	require.NoError(t, err)
	assert.Equal(t, "Atelier", v)

	// The two tiers are independent tables.
	_, err = store.GetSecureValue("site_title")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.PutSecureValue("totp_secret", "JBSWY3DP"))
	v, err = store.GetSecureValue("totp_secret")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DP", v)

	settings, err := store.ListSettings()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"site_title": "Atelier"}, settings)
}

func TestSessionLifecycle(t *testing.T) {
	store := newStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	_, err := store.GetSession("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	fresh := storage.Session{Token: "fresh", CreatedAt: now, ExpiresAt: now.Add(30 * time.Minute)}
	stale := storage.Session{Token: "stale", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-30 * time.Minute)}
	require.NoError(t, store.PutSession(fresh))
	require.NoError(t, store.PutSession(stale))

	got, err := store.GetSession("fresh")
	require.NoError(t, err)
	assert.True(t, fresh.ExpiresAt.Equal(got.ExpiresAt))

	deleted, err := store.DeleteSessionsExpiredBefore(now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetSession("stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetSession("fresh")
	assert.NoError(t, err)
}

func TestAttemptLogWindow(t *testing.T) {
	store := newStore(t)
	now := time.Now().UTC()

	record := func(identity string, success bool, age time.Duration) {
		require.NoError(t, store.AppendAttempt(storage.Attempt{
			ID:        identity + age.String(),
			Identity:  identity,
			Action:    "verify",
			Success:   success,
			CreatedAt: now.Add(-age),
		}))
	}

	record("1.2.3.4", false, time.Minute)
	record("1.2.3.4", false, 2*time.Minute)
	record("1.2.3.4", false, 10*time.Minute) // outside the window
	record("1.2.3.4", true, time.Minute)     // successes never count
	record("5.6.7.8", false, time.Minute)    // different identity

	count, err := store.CountFailedAttempts("1.2.3.4", now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountFailedAttempts("5.6.7.8", now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.CountFailedAttempts("9.9.9.9", now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecords(t *testing.T) {
	store := newStore(t)

	_, err := store.GetRecord("PROJECT", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.PutRecord("PROJECT", "a", []byte(`{"id":"a"}`)))
	require.NoError(t, store.PutRecord("PROJECT", "b", []byte(`{"id":"b"}`)))
	require.NoError(t, store.PutRecord("PRODUCT", "c", []byte(`{"id":"c"}`)))

	data, err := store.GetRecord("PROJECT", "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a"}`, string(data))

	records, err := store.ListRecords("PROJECT")
	require.NoError(t, err)
	assert.Len(t, records, 2, "listing must not cross kinds")

	require.NoError(t, store.DeleteRecord("PROJECT", "a"))
	assert.ErrorIs(t, store.DeleteRecord("PROJECT", "a"), storage.ErrNotFound)

	records, err = store.ListRecords("PROJECT")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	store, err := bboltstorage.NewFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.PutSecureValue("totp_secret", "JBSWY3DP"))
	require.NoError(t, store.Close())

	store, err = bboltstorage.NewFromFile(path, nil)
	require.NoError(t, err)
	defer store.Close()
	v, err := store.GetSecureValue("totp_secret")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DP", v)
}
