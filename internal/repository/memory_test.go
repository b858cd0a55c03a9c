package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockManagerMutualExclusion(t *testing.T) {
	m := NewMemoryLockManager()
	ctx := context.Background()

	var inCritical int
	var maxInCritical int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(ctx, "calendar", time.Second)
			require.NoError(t, err)
			defer release()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInCritical, "at most one holder per key at a time")
}

func TestMemoryLockManagerIndependentKeys(t *testing.T) {
	m := NewMemoryLockManager()
	ctx := context.Background()

	releaseA, err := m.Acquire(ctx, "equipment:1", time.Second)
	require.NoError(t, err)
	defer releaseA()

	// A different key must not block.
	done := make(chan struct{})
	go func() {
		releaseB, err := m.Acquire(ctx, "equipment:2", time.Second)
		assert.NoError(t, err)
		releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquire on an unrelated key blocked")
	}
}

func TestMemoryLockManagerContextCancel(t *testing.T) {
	m := NewMemoryLockManager()

	release, err := m.Acquire(context.Background(), "calendar", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.Acquire(ctx, "calendar", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	// Key is free again after release.
	release2, err := m.Acquire(context.Background(), "calendar", time.Second)
	require.NoError(t, err)
	release2()
}

func TestMemoryLockManagerDoubleRelease(t *testing.T) {
	m := NewMemoryLockManager()

	release, err := m.Acquire(context.Background(), "calendar", time.Second)
	require.NoError(t, err)

	release()
	release() // must be a no-op

	release2, err := m.Acquire(context.Background(), "calendar", time.Second)
	require.NoError(t, err)
	release2()
}
