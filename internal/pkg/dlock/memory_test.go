// internal/pkg/dlock/memory_test.go
package dlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	lock, err := locker.TryAcquire(ctx, "inventory:p1", 0, time.Minute)
	require.NoError(t, err)

	// 持有期间别人拿不到
	_, err = locker.TryAcquire(ctx, "inventory:p1", 50*time.Millisecond, time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	// 不同 key 互不影响
	other, err := locker.TryAcquire(ctx, "inventory:p2", 0, time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	lock, err = locker.TryAcquire(ctx, "inventory:p1", 0, time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx))
}

func TestMemoryLockerWaiterWakesOnRelease(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	lock, err := locker.TryAcquire(ctx, "k", 0, time.Minute)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		l, err := locker.TryAcquire(ctx, "k", time.Second, time.Minute)
		if err == nil {
			defer l.Release(ctx)
		}
		acquired <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, lock.Release(ctx))

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by release")
	}
}

func TestMemoryLockerLeaseExpiry(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	lock, err := locker.TryAcquire(ctx, "k", 0, 50*time.Millisecond)
	require.NoError(t, err)

	// 租约到期后锁自动回收，新的获取应当成功
	next, err := locker.TryAcquire(ctx, "k", time.Second, time.Minute)
	require.NoError(t, err)
	defer next.Release(ctx)

	// 过期持有者的 Release 不得抢走新持有者的锁
	require.NoError(t, lock.Release(ctx))
	_, err = locker.TryAcquire(ctx, "k", 0, time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestMemoryLockerReleaseIdempotent(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	lock, err := locker.TryAcquire(ctx, "k", 0, time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))
}

func TestMemoryLockerContextCancelled(t *testing.T) {
	locker := NewMemoryLocker()

	lock, err := locker.TryAcquire(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	defer lock.Release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = locker.TryAcquire(ctx, "k", time.Minute, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
