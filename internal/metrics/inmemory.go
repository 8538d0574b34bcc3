package metrics

import (
	"sync"
	"time"
)

// InMemory is a Recorder backed by in-process counters.
// Useful for tests and for the development environment.
type InMemory struct {
	mu sync.Mutex

	redirects      map[string]int64
	cacheHits      int64
	cacheMisses    int64
	linksCreated   int64
	linksUpdated   int64
	linksDeleted   int64
	published      map[string]int64
	dropped        int64
	totalRedirects int64
	totalDuration  time.Duration
}

// NewInMemory returns an in-memory Recorder.
func NewInMemory() *InMemory {
	return &InMemory{
		redirects: make(map[string]int64),
		published: make(map[string]int64),
	}
}

func (m *InMemory) IncRedirect(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects[outcome]++
}

func (m *InMemory) IncCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *InMemory) IncCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

func (m *InMemory) ObserveRedirectDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRedirects++
	m.totalDuration += d
}

func (m *InMemory) IncLinkCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linksCreated++
}

func (m *InMemory) IncLinkUpdated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linksUpdated++
}

func (m *InMemory) IncLinkDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linksDeleted++
}

func (m *InMemory) IncEventPublished(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[status]++
}

func (m *InMemory) IncEventDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

// Redirects returns the count recorded for an outcome.
func (m *InMemory) Redirects(outcome string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.redirects[outcome]
}

// CacheHits returns the recorded cache hit count.
func (m *InMemory) CacheHits() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheHits
}

// CacheMisses returns the recorded cache miss count.
func (m *InMemory) CacheMisses() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cacheMisses
}

// LinksCreated returns the recorded link creation count.
func (m *InMemory) LinksCreated() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.linksCreated
}

// Published returns the count recorded for a publish status.
func (m *InMemory) Published(status string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[status]
}

// Dropped returns the count of events dropped at the queue.
func (m *InMemory) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
