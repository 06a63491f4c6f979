package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

type memoryEntry struct {
	job       *models.Job
	expiresAt time.Time
}

// MemoryStore keeps job records in process memory. Expired records are hidden
// on read and reclaimed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]memoryEntry
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates a MemoryStore whose records live for ttl after creation.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]memoryEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Put(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[job.ID] = memoryEntry{
		job:       job.Clone(),
		expiresAt: job.CreatedAt.Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	return e.job.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id uuid.UUID, fn func(*models.Job) error) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}

	next := e.job.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	e.job = next
	s.entries[id] = e
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// lookup returns a live entry, evicting it if its window has passed. Caller holds mu.
func (s *MemoryStore) lookup(id uuid.UUID) (memoryEntry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, id)
		return memoryEntry{}, false
	}
	return e, true
}

// Sweep evicts every expired record and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of records held, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run sweeps on every interval tick until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("expired jobs evicted", "count", n)
			}
		}
	}
}

var _ Store = (*MemoryStore)(nil)
