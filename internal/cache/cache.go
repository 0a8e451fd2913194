// Package cache stores full unfiltered search result sets keyed by a
// deterministic hash of the search parameters, so pagination and filter
// refinement never re-query the source APIs. Remote-first (Redis via
// rueidis) with a transparent in-memory fallback.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medfuse/medfuse/internal/classify"
	"github.com/medfuse/medfuse/internal/domain/record"
)

// DefaultTTL is how long a search entry stays valid.
const DefaultTTL = time.Hour

// Store is the key-value contract consumed by the search service. Get
// returns domain.ErrCacheMiss for both "never stored" and "expired"; the
// caller cannot and must not distinguish them.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	ClearPattern(ctx context.Context, pattern string) (int, error)
	Info(ctx context.Context) Info
}

// Info describes the backing store state.
type Info struct {
	BackendAvailable bool `json:"backend_available"`
	Size             int  `json:"size"`
}

// SearchEntry holds the full unfiltered result superset for one search,
// from which pages and filtered views are sliced.
type SearchEntry struct {
	Params    map[string]any       `json:"params"`
	Query     string               `json:"query"`
	Items     []record.Item        `json:"items"`
	Stats     classify.FilterStats `json:"stats"`
	CreatedAt time.Time            `json:"created_at"`
}

// EncodeEntry serializes a search entry for storage.
func EncodeEntry(e SearchEntry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return data, nil
}

// DecodeEntry deserializes a stored search entry.
func DecodeEntry(data []byte) (SearchEntry, error) {
	var e SearchEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return SearchEntry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return e, nil
}
