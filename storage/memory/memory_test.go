package memory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkomarek/atelier/storage"
	"github.com/nkomarek/atelier/storage/memory"
)

func TestKVTiers(t *testing.T) {
	store := memory.New()

	_, err := store.GetSetting("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetSecureValue("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.PutSetting("k", "legacy"))
	require.NoError(t, store.PutSecureValue("k", "secure"))

	v, err := store.GetSetting("k")
	require.NoError(t, err)
	assert.Equal(t, "legacy", v)
	v, err = store.GetSecureValue("k")
	require.NoError(t, err)
	assert.Equal(t, "secure", v)
}

func TestSessionPurge(t *testing.T) {
	store := memory.New()
	now := time.Now()

	require.NoError(t, store.PutSession(storage.Session{Token: "live", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.PutSession(storage.Session{Token: "dead", ExpiresAt: now.Add(-time.Minute)}))

	deleted, err := store.DeleteSessionsExpiredBefore(now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, store.SessionCount())
}

func TestAttemptCounting(t *testing.T) {
	store := memory.New()
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendAttempt(storage.Attempt{
			Identity: "a", Success: false, CreatedAt: now,
		}))
	}
	require.NoError(t, store.AppendAttempt(storage.Attempt{
		Identity: "a", Success: true, CreatedAt: now,
	}))
	require.NoError(t, store.AppendAttempt(storage.Attempt{
		Identity: "a", Success: false, CreatedAt: now.Add(-10 * time.Minute),
	}))

	count, err := store.CountFailedAttempts("a", now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 5, store.AttemptCount())
}

func TestRecordIsolation(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.PutRecord("A", "1", []byte("one")))
	require.NoError(t, store.PutRecord("B", "1", []byte("two")))

	records, err := store.ListRecords("A")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "one", string(records[0]))

	require.NoError(t, store.DeleteRecord("A", "1"))
	assert.ErrorIs(t, store.DeleteRecord("A", "1"), storage.ErrNotFound)
}
