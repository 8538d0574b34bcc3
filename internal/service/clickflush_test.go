package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brevy/brevy/internal/repository"
)

// fakeCounterSource backs ClickFlusher tests with an in-memory counter map.
type fakeCounterSource struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeCounterSource() *fakeCounterSource {
	return &fakeCounterSource{counts: make(map[string]int64)}
}

func (s *fakeCounterSource) ScanClickKeys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.counts))
	for code := range s.counts {
		keys = append(keys, "clicks:"+code)
	}
	return keys, nil
}

func (s *fakeCounterSource) GetAndResetClicks(_ context.Context, shortCode string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := s.counts[shortCode]
	delete(s.counts, shortCode)
	return count, nil
}

func (s *fakeCounterSource) AddClicks(_ context.Context, shortCode string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[shortCode] += count
	return nil
}

func (s *fakeCounterSource) pending(shortCode string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[shortCode]
}

// fakeCountStore records flushed counts, optionally failing per code.
type fakeCountStore struct {
	mu      sync.Mutex
	flushed map[string]int64
	failFor map[string]error
}

func newFakeCountStore() *fakeCountStore {
	return &fakeCountStore{
		flushed: make(map[string]int64),
		failFor: make(map[string]error),
	}
}

func (s *fakeCountStore) IncrementClickCountByCode(_ context.Context, shortCode string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[shortCode]; err != nil {
		return err
	}
	s.flushed[shortCode] += count
	return nil
}

func (s *fakeCountStore) total(shortCode string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushed[shortCode]
}

func TestClickFlusher_FlushMovesCounts(t *testing.T) {
	t.Parallel()

	source := newFakeCounterSource()
	store := newFakeCountStore()
	flusher := NewClickFlusher(source, store, testLogger(), time.Minute)

	source.counts["abc123"] = 7
	source.counts["def456"] = 3

	flusher.Flush(context.Background())

	if got := store.total("abc123"); got != 7 {
		t.Errorf("flushed abc123 = %d, want 7", got)
	}
	if got := store.total("def456"); got != 3 {
		t.Errorf("flushed def456 = %d, want 3", got)
	}
	if got := source.pending("abc123"); got != 0 {
		t.Errorf("pending abc123 = %d, want 0", got)
	}
}

func TestClickFlusher_RestoresOnStoreFailure(t *testing.T) {
	t.Parallel()

	source := newFakeCounterSource()
	store := newFakeCountStore()
	flusher := NewClickFlusher(source, store, testLogger(), time.Minute)

	source.counts["abc123"] = 5
	store.failFor["abc123"] = errors.New("deadlock detected")

	flusher.Flush(context.Background())

	if got := source.pending("abc123"); got != 5 {
		t.Errorf("pending abc123 = %d, want 5 (restored after failure)", got)
	}

	// The next pass, with the store healthy again, picks the count up.
	delete(store.failFor, "abc123")
	flusher.Flush(context.Background())

	if got := store.total("abc123"); got != 5 {
		t.Errorf("flushed abc123 = %d, want 5", got)
	}
}

func TestClickFlusher_DropsCountsForDeletedLinks(t *testing.T) {
	t.Parallel()

	source := newFakeCounterSource()
	store := newFakeCountStore()
	flusher := NewClickFlusher(source, store, testLogger(), time.Minute)

	source.counts["orphan"] = 4
	store.failFor["orphan"] = repository.ErrLinkNotFound

	flusher.Flush(context.Background())

	if got := source.pending("orphan"); got != 0 {
		t.Errorf("pending orphan = %d, want 0 (no restore for deleted links)", got)
	}
	if got := store.total("orphan"); got != 0 {
		t.Errorf("flushed orphan = %d, want 0", got)
	}
}

func TestClickFlusher_ShutdownRunsFinalFlush(t *testing.T) {
	t.Parallel()

	source := newFakeCounterSource()
	store := newFakeCountStore()
	flusher := NewClickFlusher(source, store, testLogger(), time.Hour)

	flusher.Start()
	source.mu.Lock()
	source.counts["abc123"] = 2
	source.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := flusher.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if got := store.total("abc123"); got != 2 {
		t.Errorf("flushed abc123 = %d, want 2 (final flush on shutdown)", got)
	}
}
