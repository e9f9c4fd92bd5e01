// internal/pkg/outbox/store.go
package outbox

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"dtx/internal/pkg/database"
)

// Store 声明 outbox 表的全部操作。
// Append 跑在调用方的环境事务里（插入失败则整个事务失败，
// 事件的持久化时刻因此与状态变更严格一致）；
// MarkSent/MarkFailed 是独立的单行更新，故投递与标记之间崩溃
// 只会造成重复投递，不会丢事件——at-least-once 由此成立。
type Store interface {
	Append(ctx context.Context, aggregateID, eventType string, payload []byte) error
	FetchNew(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, sendErr error) error
}

// GormStore 基于 gorm/MySQL 实现 Store
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	err := s.conn(ctx).Create(&Record{
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		Status:      StatusNew,
		CreatedAt:   time.Now(),
	}).Error
	return errors.Wrap(err, "append outbox record")
}

// FetchNew 按 id 从旧到新取 NEW 记录，批量上限用于控制单轮投递时长
func (s *GormStore) FetchNew(ctx context.Context, limit int) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("status = ?", StatusNew).
		Order("id").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "fetch new outbox records")
	}
	return records, nil
}

func (s *GormStore) MarkSent(ctx context.Context, id uint64) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  StatusSent,
			"sent_at": &now,
		}).Error
	return errors.Wrap(err, "mark outbox record sent")
}

func (s *GormStore) MarkFailed(ctx context.Context, id uint64, sendErr error) error {
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retries":    gorm.Expr("retries + 1"),
			"last_error": sendErr.Error(),
		}).Error
	return errors.Wrap(err, "mark outbox record failed")
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}
