package repository

import (
	"context"
	"sync/atomic"
	"time"

	"studiobook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverLockManager degrades from the shared (Redis) lock manager to
// the in-process one when the primary is unreachable, and probes for
// recovery after a minute. Process-local locking is weaker across
// instances, but the store's transactional claim check still prevents
// double-booking; degradation only costs some wasted confirm attempts.
type FailoverLockManager struct {
	primary   domain.LockManager
	fallback  domain.LockManager
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverLockManager(primary, fallback domain.LockManager, logger *zerolog.Logger) *FailoverLockManager {
	return &FailoverLockManager{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if !f.isDown.Load() {
		release, err := f.primary.Acquire(ctx, key, ttl)
		if err == nil {
			return release, nil
		}
		if ctx.Err() != nil {
			// Caller timeout, not a backend failure.
			return nil, err
		}
		f.logger.Error().Err(err).Str("key", key).Msg("primary lock manager failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck.Store(time.Now().UnixNano())
	}

	// Try to recover after 1 minute.
	if f.isDown.Load() && time.Since(time.Unix(0, f.lastCheck.Load())) > time.Minute {
		release, err := f.primary.Acquire(ctx, key, ttl)
		if err == nil {
			f.isDown.Store(false)
			return release, nil
		}
		f.lastCheck.Store(time.Now().UnixNano())
	}

	return f.fallback.Acquire(ctx, key, ttl)
}
