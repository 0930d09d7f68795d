package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleaner_PurgesOnlyTerminalRowsPastCutoff(t *testing.T) {
	store := newMemStore()
	now := time.Now().UTC()
	old := now.Add(-10 * 24 * time.Hour)

	oldSent := newRecordAt("t", old)
	store.add(oldSent)
	require.NoError(t, store.MarkSent(context.Background(), oldSent.ID, old))

	freshSent := newRecordAt("t", now)
	store.add(freshSent)
	require.NoError(t, store.MarkSent(context.Background(), freshSent.ID, now))

	oldFailed := newRecordAt("t", old)
	store.add(oldFailed)
	require.NoError(t, store.MarkFailed(context.Background(), oldFailed.ID, StatusFailed, old, "broker gone"))

	pending := newRecordAt("t", old)
	store.add(pending)

	c := NewCleaner(store, testLogger(), CleanerConfig{Retention: 7 * 24 * time.Hour})
	c.now = func() time.Time { return now }
	c.clean(context.Background())

	require.Equal(t, 2, store.count())
	require.Equal(t, StatusSent, store.get(freshSent.ID).Status)
	require.Equal(t, StatusNew, store.get(pending.ID).Status)
}

func TestCleaner_UsesMatchingTimestampColumn(t *testing.T) {
	store := newMemStore()
	now := time.Now().UTC()
	old := now.Add(-30 * 24 * time.Hour)

	// SENT long ago but re-marked: published_at drives deletion, not created_at.
	rec := newRecordAt("t", now)
	store.add(rec)
	require.NoError(t, store.MarkSent(context.Background(), rec.ID, old))

	c := NewCleaner(store, testLogger(), CleanerConfig{Retention: 7 * 24 * time.Hour})
	c.now = func() time.Time { return now }
	c.clean(context.Background())

	require.Equal(t, 0, store.count())
}
