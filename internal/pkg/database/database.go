// internal/pkg/database/database.go
package database

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 建立 MySQL 连接并返回 gorm 句柄
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	return db, nil
}

type txKey struct{}

// WithTx 把进行中的事务挂到 ctx 上，供同一业务事务内的各个仓储复用
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom 取出 ctx 上的事务，没有时返回 false
func TxFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// TxManager 把"若干写操作在同一个本地事务内生效"这件事抽象出来，
// 业务层只依赖它，不直接接触 gorm 事务 API
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// GormTxManager 基于 gorm 事务实现 TxManager
type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

// Do 开启事务执行 fn；ctx 上已有事务时直接复用（事务不嵌套）
func (m *GormTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFrom(ctx); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

// NopTxManager 在没有真实数据库的部署形态（memory 驱动）下使用。
// 它不提供原子性，只保证 fn 被执行。
type NopTxManager struct{}

func (NopTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
