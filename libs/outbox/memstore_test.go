package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore mirrors PGStore semantics in memory, including the atomic
// conditional claim, so dispatcher behavior can be exercised without a
// database.
type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Record
	seq  map[uuid.UUID]int
	next int
}

func newMemStore() *memStore {
	return &memStore{
		rows: map[uuid.UUID]*Record{},
		seq:  map[uuid.UUID]int{},
	}
}

func (s *memStore) Append(_ context.Context, _ pgx.Tx, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.rows[rec.ID] = &r
	s.seq[rec.ID] = s.next
	s.next++
	return nil
}

func (s *memStore) add(rec Record) {
	_ = s.Append(context.Background(), nil, rec)
}

func (s *memStore) FetchBatch(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []Record
	for _, r := range s.rows {
		if r.Status == StatusNew {
			batch = append(batch, *r)
		}
	}
	sort.Slice(batch, func(i, j int) bool {
		if !batch[i].CreatedAt.Equal(batch[j].CreatedAt) {
			return batch[i].CreatedAt.Before(batch[j].CreatedAt)
		}
		return s.seq[batch[i].ID] < s.seq[batch[j].ID]
	})
	if len(batch) > limit {
		batch = batch[:limit]
	}
	return batch, nil
}

func (s *memStore) Claim(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	if !ok || r.Status != StatusNew {
		return false, nil
	}
	r.Status = StatusProcessing
	t := now
	r.LastAttemptAt = &t
	return true, nil
}

func (s *memStore) MarkSent(_ context.Context, id uuid.UUID, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rows[id]
	r.Status = StatusSent
	t := publishedAt
	r.PublishedAt = &t
	r.LastError = ""
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, next Status, now time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rows[id]
	r.Status = next
	r.Attempts++
	t := now
	r.LastAttemptAt = &t
	r.LastError = truncateError(lastError)
	return nil
}

func (s *memStore) DeleteSentBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.rows {
		if r.Status == StatusSent && r.PublishedAt != nil && r.PublishedAt.Before(cutoff) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, r := range s.rows {
		if r.Status == StatusFailed && r.LastAttemptAt != nil && r.LastAttemptAt.Before(cutoff) {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) get(id uuid.UUID) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rows[id]
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStore) countByStatus(status Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.Status == status {
			n++
		}
	}
	return n
}

var (
	_ Store    = (*memStore)(nil)
	_ Appender = (*memStore)(nil)
)
