// internal/pkg/idempotency/store.go
package idempotency

import (
	"context"
	"sync"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"dtx/internal/pkg/database"
)

// ProcessedMessage 记录已经消费过的消息键。
// 唯一键冲突是唯一的"已处理"判定手段——不做先查后插，
// 否则查和插之间存在并发窗口。
type ProcessedMessage struct {
	MessageKey  string    `gorm:"column:message_key;primaryKey;size:128"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (ProcessedMessage) TableName() string { return "processed_messages" }

// MessageKey 由事件类型和聚合 ID 确定性地拼出消息键
func MessageKey(tag, aggregateID string) string {
	return tag + ":" + aggregateID
}

// Store 声明幂等判定的唯一入口。
// Claim 返回 true 当且仅当本次调用完成了首次插入。
type Store interface {
	Claim(ctx context.Context, messageKey string) (bool, error)
}

// GormStore 基于 MySQL 唯一键实现 Store
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Claim(ctx context.Context, messageKey string) (bool, error) {
	err := s.conn(ctx).Create(&ProcessedMessage{
		MessageKey:  messageKey,
		ProcessedAt: time.Now(),
	}).Error
	if err == nil {
		return true, nil
	}
	if isDuplicateKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "claim message key")
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// MySQL 1062 (ER_DUP_ENTRY)；gorm 开了 TranslateError 时是 ErrDuplicatedKey
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// MemoryStore 是进程内实现，用于单进程部署形态和测试
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) Claim(_ context.Context, messageKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[messageKey]; ok {
		return false, nil
	}
	s.seen[messageKey] = struct{}{}
	return true, nil
}
