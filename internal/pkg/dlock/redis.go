// internal/pkg/dlock/redis.go
package dlock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// 只有 value 仍是自己的 token 时才删除，避免释放别人的租约
var releaseScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
else
    return 0
end
`)

// 抢锁失败后的轮询间隔
const acquirePollInterval = 50 * time.Millisecond

// RedisLocker 用 SET NX PX 实现租约锁。
// token 标识所有权，到期由 Redis 自动删除 key。
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, wait, hold time.Duration) (Lock, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, hold).Result()
		if err != nil {
			return nil, errors.Wrap(err, "redis setnx")
		}
		if ok {
			return &redisLock{client: l.client, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquirePollInterval):
		}
	}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	// 返回 0 说明租约已过期或被抢走，按幂等处理
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && err != redis.Nil {
		return errors.Wrap(err, "redis release lock")
	}
	return nil
}
