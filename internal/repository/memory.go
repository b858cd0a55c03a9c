package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryLockManager provides process-local mutual exclusion keyed by
// resource id. The ttl argument is a lease concept for shared backends
// and is ignored here; a process-local lock cannot outlive its holder.
type MemoryLockManager struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

type memoryLock struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLockManager() *MemoryLockManager {
	return &MemoryLockManager{locks: make(map[string]*memoryLock)}
}

func (m *MemoryLockManager) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memoryLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-l.ch
			m.unref(key, l)
		})
	}
	return release, nil
}

func (m *MemoryLockManager) unref(key string, l *memoryLock) {
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}
