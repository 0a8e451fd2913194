package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/domain"
)

// Fallback is a remote-first store that degrades transparently to the local
// memory store when the remote backend errors. Backend unavailability never
// surfaces to the caller.
type Fallback struct {
	remote Store
	local  *Memory
	logger *zap.Logger
}

// Compile-time check: Fallback implements Store.
var _ Store = (*Fallback)(nil)

// NewFallback wraps a remote store with a local memory fallback.
// remote may be nil, in which case only the local store is used.
func NewFallback(remote Store, local *Memory, logger *zap.Logger) *Fallback {
	return &Fallback{remote: remote, local: local, logger: logger}
}

// Get reads from the remote store first, then the local one.
func (f *Fallback) Get(ctx context.Context, key string) ([]byte, error) {
	if f.remote != nil {
		data, err := f.remote.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, domain.ErrCacheMiss
		}
		f.logger.Warn("remote cache get failed, falling back to memory", zap.Error(err))
	}
	return f.local.Get(ctx, key)
}

// Set writes to the remote store, falling back to memory on error. The
// local store is also populated on remote success so a later backend outage
// still serves recent entries.
func (f *Fallback) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.remote != nil {
		if err := f.remote.Set(ctx, key, value, ttl); err != nil {
			f.logger.Warn("remote cache set failed, falling back to memory", zap.Error(err))
		}
	}
	return f.local.Set(ctx, key, value, ttl)
}

// ClearPattern clears both stores; the remote count wins when available.
func (f *Fallback) ClearPattern(ctx context.Context, pattern string) (int, error) {
	localN, err := f.local.ClearPattern(ctx, pattern)
	if err != nil {
		return 0, err
	}
	if f.remote != nil {
		remoteN, err := f.remote.ClearPattern(ctx, pattern)
		if err != nil {
			f.logger.Warn("remote cache clear failed", zap.Error(err))
			return localN, nil
		}
		return remoteN, nil
	}
	return localN, nil
}

// Info reports the remote backend state when configured, else the local one.
func (f *Fallback) Info(ctx context.Context) Info {
	if f.remote != nil {
		info := f.remote.Info(ctx)
		if info.BackendAvailable {
			return info
		}
	}
	info := f.local.Info(ctx)
	// The remote backend was configured but unreachable.
	if f.remote != nil {
		info.BackendAvailable = false
	}
	return info
}
