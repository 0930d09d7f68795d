package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type senderFunc func(ctx context.Context, rec Record) error

func (f senderFunc) Send(ctx context.Context, rec Record) error { return f(ctx, rec) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRecordAt(topic string, createdAt time.Time) Record {
	rec := NewRecord(topic, "key", "account.deposit", []byte(`{"eventId":"x"}`))
	rec.CreatedAt = createdAt
	return rec
}

func TestDispatcher_AllSendsSucceed(t *testing.T) {
	// Scenario: batchSize=2, 5 NEW rows; every row ends SENT after enough ticks.
	store := newMemStore()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		store.add(newRecordAt("bank.events.account", base.Add(time.Duration(i)*time.Millisecond)))
	}

	var sent []Record
	d := NewDispatcher(store, senderFunc(func(_ context.Context, rec Record) error {
		sent = append(sent, rec)
		return nil
	}), testLogger(), DispatcherConfig{BatchSize: 2, MaxAttempts: 3})

	for i := 0; i < 3; i++ {
		require.NoError(t, d.tick(context.Background()))
	}

	require.Len(t, sent, 5)
	require.Equal(t, 5, store.countByStatus(StatusSent))
	for _, rec := range sent {
		got := store.get(rec.ID)
		require.NotNil(t, got.PublishedAt)
		require.Empty(t, got.LastError)
	}
}

func TestDispatcher_FIFOWithinTick(t *testing.T) {
	store := newMemStore()
	base := time.Now().UTC()
	first := newRecordAt("t", base)
	second := newRecordAt("t", base.Add(time.Second))
	store.add(second)
	store.add(first)

	var order []string
	d := NewDispatcher(store, senderFunc(func(_ context.Context, rec Record) error {
		order = append(order, rec.ID.String())
		return nil
	}), testLogger(), DispatcherConfig{BatchSize: 10})

	require.NoError(t, d.tick(context.Background()))
	require.Equal(t, []string{first.ID.String(), second.ID.String()}, order)
}

func TestDispatcher_FailingSendExhaustsAttempts(t *testing.T) {
	// Scenario: maxAttempts=3 and a permanently failing send. The row must be
	// tried exactly three times, end FAILED with attempts==3, and never be
	// selected again.
	store := newMemStore()
	rec := newRecordAt("bank.events.account", time.Now().UTC())
	store.add(rec)

	sends := 0
	d := NewDispatcher(store, senderFunc(func(context.Context, Record) error {
		sends++
		return errors.New("broker unavailable")
	}), testLogger(), DispatcherConfig{BatchSize: 10, MaxAttempts: 3})

	for i := 0; i < 6; i++ {
		require.NoError(t, d.tick(context.Background()))
	}

	got := store.get(rec.ID)
	require.Equal(t, 3, sends)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, 3, got.Attempts)
	require.Equal(t, "broker unavailable", got.LastError)

	// Terminal finality: FAILED rows are invisible to the NEW-row query.
	batch, err := store.FetchBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, batch)
}

func TestDispatcher_PrecheckRetiresExhaustedRow(t *testing.T) {
	// A row whose stored attempts already reach the ceiling is retired
	// without another send.
	store := newMemStore()
	rec := newRecordAt("t", time.Now().UTC())
	rec.Attempts = 3
	store.add(rec)

	d := NewDispatcher(store, senderFunc(func(context.Context, Record) error {
		t.Fatal("send must not be attempted")
		return nil
	}), testLogger(), DispatcherConfig{BatchSize: 10, MaxAttempts: 3})

	require.NoError(t, d.tick(context.Background()))

	got := store.get(rec.ID)
	require.Equal(t, StatusFailed, got.Status)
	require.Equal(t, "Max attempts exceeded", got.LastError)
}

func TestDispatcher_UnboundedWhenMaxAttemptsDisabled(t *testing.T) {
	store := newMemStore()
	rec := newRecordAt("t", time.Now().UTC())
	store.add(rec)

	d := NewDispatcher(store, senderFunc(func(context.Context, Record) error {
		return errors.New("still down")
	}), testLogger(), DispatcherConfig{BatchSize: 10, MaxAttempts: 0})

	for i := 0; i < 10; i++ {
		require.NoError(t, d.tick(context.Background()))
	}

	got := store.get(rec.ID)
	require.Equal(t, StatusNew, got.Status)
	require.Equal(t, 10, got.Attempts)
}

func TestDispatcher_TimedOutSendRequeues(t *testing.T) {
	store := newMemStore()
	rec := newRecordAt("t", time.Now().UTC())
	store.add(rec)

	d := NewDispatcher(store, senderFunc(func(ctx context.Context, _ Record) error {
		<-ctx.Done()
		return ctx.Err()
	}), testLogger(), DispatcherConfig{BatchSize: 10, MaxAttempts: 5, PublishTimeout: 5 * time.Millisecond})

	require.NoError(t, d.tick(context.Background()))

	got := store.get(rec.ID)
	require.Equal(t, StatusNew, got.Status)
	require.Equal(t, 1, got.Attempts)
	require.Contains(t, got.LastError, "context deadline exceeded")
}

func TestDispatcher_TickLeavesNoRowProcessing(t *testing.T) {
	// Liveness: after a tick every touched row is SENT, NEW or FAILED.
	store := newMemStore()
	base := time.Now().UTC()
	for i := 0; i < 6; i++ {
		store.add(newRecordAt("t", base.Add(time.Duration(i)*time.Millisecond)))
	}

	flip := false
	d := NewDispatcher(store, senderFunc(func(context.Context, Record) error {
		flip = !flip
		if flip {
			return errors.New("flaky")
		}
		return nil
	}), testLogger(), DispatcherConfig{BatchSize: 10, MaxAttempts: 3})

	require.NoError(t, d.tick(context.Background()))
	require.Equal(t, 0, store.countByStatus(StatusProcessing))
}

func TestClaim_ExactlyOnceUnderContention(t *testing.T) {
	store := newMemStore()
	rec := newRecordAt("t", time.Now().UTC())
	store.add(rec)

	const claimers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Claim(context.Background(), rec.ID, time.Now().UTC())
			require.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	require.Equal(t, 1, won)
}

func TestDispatcher_LostClaimSkipsRow(t *testing.T) {
	store := newMemStore()
	rec := newRecordAt("t", time.Now().UTC())
	store.add(rec)

	// Another replica claims between fetch and claim.
	claimed, err := store.Claim(context.Background(), rec.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)

	sends := 0
	d := NewDispatcher(store, senderFunc(func(context.Context, Record) error {
		sends++
		return nil
	}), testLogger(), DispatcherConfig{BatchSize: 10})

	require.NoError(t, d.tick(context.Background()))
	require.Equal(t, 0, sends)
	require.Equal(t, StatusProcessing, store.get(rec.ID).Status)
}

func TestMarkFailed_TruncatesError(t *testing.T) {
	store := newMemStore()
	rec := newRecordAt("t", time.Now().UTC())
	store.add(rec)

	long := strings.Repeat("x", MaxErrorLen+500)
	require.NoError(t, store.MarkFailed(context.Background(), rec.ID, StatusNew, time.Now().UTC(), long))
	require.Len(t, store.get(rec.ID).LastError, MaxErrorLen)
}
