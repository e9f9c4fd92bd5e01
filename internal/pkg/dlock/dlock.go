// internal/pkg/dlock/dlock.go
package dlock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired 表示在 wait 时限内没有抢到锁
var ErrNotAcquired = errors.New("dlock: lock not acquired within wait timeout")

// Lock 是一次成功抢锁后拿到的"所有权凭证"，只有凭证持有者能释放。
// Release 幂等，且只在租约仍然归自己时生效。
type Lock interface {
	Release(ctx context.Context) error
}

// Locker 提供按 key 的跨进程互斥。
// wait 限定排队时间，超时返回 ErrNotAcquired；
// hold 是租约时长，持有者崩溃后到期自动释放，避免死锁。
type Locker interface {
	TryAcquire(ctx context.Context, key string, wait, hold time.Duration) (Lock, error)
}
