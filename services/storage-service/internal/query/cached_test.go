package query

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitakapustkin/bankevents/services/storage-service/internal/eventstore"
)

type countingUserFinder struct {
	rows  []eventstore.UserEvent
	calls int
}

func (f *countingUserFinder) Find(_ context.Context, _ eventstore.Filter) ([]eventstore.UserEvent, error) {
	f.calls++
	return f.rows, nil
}

func newCached(t *testing.T, users *countingUserFinder, ttl time.Duration) (*CachedService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	inner := NewService(users, &fakeAccountFinder{}, &fakeTransactionFinder{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCachedService(inner, client, ttl, logger), mr
}

func TestCachedFind_SecondCallServedFromCache(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	users := &countingUserFinder{rows: []eventstore.UserEvent{
		{EventID: uuid.New(), EventType: "user.created", EventTime: at(now)},
	}}
	svc, _ := newCached(t, users, time.Minute)

	f := Filter{Source: SourceUser}
	first, err := svc.Find(context.Background(), f)
	require.NoError(t, err)
	second, err := svc.Find(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, 1, users.calls, "stores hit once")
	assert.Equal(t, first, second)
}

func TestCachedFind_ExpiryRefetches(t *testing.T) {
	users := &countingUserFinder{rows: []eventstore.UserEvent{{EventID: uuid.New()}}}
	svc, mr := newCached(t, users, time.Second)

	f := Filter{Source: SourceUser}
	_, err := svc.Find(context.Background(), f)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = svc.Find(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 2, users.calls)
}

func TestCachedFind_DistinctFiltersGetDistinctKeys(t *testing.T) {
	users := &countingUserFinder{rows: []eventstore.UserEvent{{EventID: uuid.New()}}}
	svc, _ := newCached(t, users, time.Minute)

	_, err := svc.Find(context.Background(), Filter{Source: SourceUser})
	require.NoError(t, err)
	_, err = svc.Find(context.Background(), Filter{Source: SourceUser, EventType: "user.created"})
	require.NoError(t, err)
	assert.Equal(t, 2, users.calls)
}

func TestCachedFind_RedisDownFallsThrough(t *testing.T) {
	users := &countingUserFinder{rows: []eventstore.UserEvent{{EventID: uuid.New()}}}
	svc, mr := newCached(t, users, time.Minute)
	mr.Close()

	got, err := svc.Find(context.Background(), Filter{Source: SourceUser})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, users.calls)
}
