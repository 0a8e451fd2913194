package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/medfuse/medfuse/internal/domain"
)

// DefaultMaxEntries bounds the in-memory fallback store.
const DefaultMaxEntries = 256

// Memory is a mutex-guarded in-process store with lazy TTL expiry on read
// and oldest-first eviction on write. Used standalone in tests and as the
// fallback behind Fallback when the remote backend is down.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

type memoryEntry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

// NewMemory creates a memory store holding at most maxEntries values.
// Non-positive maxEntries falls back to DefaultMaxEntries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the stored value, expiring it lazily when past its TTL.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, domain.ErrCacheMiss
	}
	return e.value, nil
}

// Set stores a value, evicting the oldest entries when the store is full.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = memoryEntry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}

	for len(m.entries) > m.maxEntries {
		m.evictOldestLocked()
	}
	return nil
}

// ClearPattern deletes entries whose key matches the glob pattern.
func (m *Memory) ClearPattern(_ context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for k := range m.entries {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return deleted, err
		}
		if ok {
			delete(m.entries, k)
			deleted++
		}
	}
	return deleted, nil
}

// Info reports the store state. The memory store is always available.
func (m *Memory) Info(_ context.Context) Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Info{BackendAvailable: true, Size: len(m.entries)}
}

func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range m.entries {
		if first || e.storedAt.Before(oldest) {
			oldestKey = k
			oldest = e.storedAt
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}
