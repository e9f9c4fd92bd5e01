// internal/pkg/dlock/memory.go
package dlock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker 是进程内实现，语义与 Redis 驱动一致：
// 排队上限 wait、租约 hold 到期自动释放、凭证校验后才许释放。
// 用于单进程部署形态和测试。
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryEntry
}

type memoryEntry struct {
	owner   *memoryLock
	waiters chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryEntry)}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, key string, wait, hold time.Duration) (Lock, error) {
	deadline := time.Now().Add(wait)

	for {
		if lock := l.tryOnce(key, hold); lock != nil {
			return lock, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrNotAcquired
		}

		l.mu.Lock()
		waiters := l.locks[key].waiters
		l.mu.Unlock()

		select {
		case <-waiters:
			// 持有者释放了，回去再抢
		case <-time.After(remaining):
			return nil, ErrNotAcquired
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *MemoryLocker) tryOnce(key string, hold time.Duration) *memoryLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		entry = &memoryEntry{waiters: make(chan struct{})}
		l.locks[key] = entry
	}
	if entry.owner != nil {
		return nil
	}

	lock := &memoryLock{locker: l, key: key}
	entry.owner = lock
	// 租约到期自动释放，模拟持有者崩溃的兜底
	lock.leaseTimer = time.AfterFunc(hold, func() { l.release(lock) })
	return lock
}

func (l *MemoryLocker) release(lock *memoryLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[lock.key]
	if !ok || entry.owner != lock {
		// 租约已过期或已释放，幂等返回
		return
	}
	lock.leaseTimer.Stop()
	entry.owner = nil

	// 唤醒所有排队者重新竞争
	close(entry.waiters)
	entry.waiters = make(chan struct{})
}

type memoryLock struct {
	locker     *MemoryLocker
	key        string
	leaseTimer *time.Timer
}

func (l *memoryLock) Release(_ context.Context) error {
	l.locker.release(l)
	return nil
}
