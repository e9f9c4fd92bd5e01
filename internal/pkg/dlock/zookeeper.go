// internal/pkg/dlock/zookeeper.go
package dlock

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/dtx_locks"

// ZKLocker 用临时顺序节点实现公平排队锁。
// 与 Redis 驱动不同，"持有者崩溃自动释放"由 ZooKeeper 会话机制兜底，
// hold 参数在这里不生效。
type ZKLocker struct {
	conn *zk.Conn
}

func NewZKLocker(conn *zk.Conn) *ZKLocker {
	return &ZKLocker{conn: conn}
}

func (l *ZKLocker) TryAcquire(ctx context.Context, key string, wait, _ time.Duration) (Lock, error) {
	lockPath := lockRoot + "/" + sanitizeKey(key)
	if err := l.ensurePath(lockPath); err != nil {
		return nil, err
	}

	// 1. 创建自己的临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(lockPath+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, errors.Wrap(err, "create sequential node")
	}

	deadline := time.Now().Add(wait)
	for {
		// 2. 看自己是不是序号最小的节点
		children, _, err := l.conn.Children(lockPath)
		if err != nil {
			l.conn.Delete(nodePath, -1)
			return nil, errors.Wrap(err, "list lock children")
		}
		sort.Strings(children)

		myNode := strings.TrimPrefix(nodePath, lockPath+"/")
		if len(children) > 0 && myNode == children[0] {
			return &zkLock{conn: l.conn, nodePath: nodePath}, nil
		}

		// 3. 不是最小节点，watch 前一个节点等它消失
		prevIndex := -1
		for i, child := range children {
			if child == myNode {
				prevIndex = i - 1
				break
			}
		}
		if prevIndex < 0 {
			l.conn.Delete(nodePath, -1)
			return nil, errors.New("own lock node missing from children")
		}

		exists, _, eventChan, err := l.conn.ExistsW(lockPath + "/" + children[prevIndex])
		if err != nil {
			l.conn.Delete(nodePath, -1)
			return nil, errors.Wrap(err, "watch previous node")
		}
		if !exists {
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			l.conn.Delete(nodePath, -1)
			return nil, ErrNotAcquired
		}

		select {
		case <-eventChan:
			// 前一个节点有变化，回到循环重新竞争
		case <-time.After(remaining):
			l.conn.Delete(nodePath, -1)
			return nil, ErrNotAcquired
		case <-ctx.Done():
			l.conn.Delete(nodePath, -1)
			return nil, ctx.Err()
		}
	}
}

func (l *ZKLocker) ensurePath(lockPath string) error {
	for _, p := range []string{lockRoot, lockPath} {
		exists, _, err := l.conn.Exists(p)
		if err != nil {
			return errors.Wrap(err, "check lock path")
		}
		if !exists {
			if _, err := l.conn.Create(p, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
				return errors.Wrapf(err, "create lock path %s", p)
			}
		}
	}
	return nil
}

// key 里可能带冒号之类的字符，ZooKeeper 路径段里统一替换掉
func sanitizeKey(key string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(key)
}

type zkLock struct {
	conn     *zk.Conn
	nodePath string
}

func (l *zkLock) Release(_ context.Context) error {
	err := l.conn.Delete(l.nodePath, -1)
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "delete lock node")
	}
	return nil
}
