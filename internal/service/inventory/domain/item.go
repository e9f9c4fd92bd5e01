// internal/service/inventory/domain/item.go
package domain

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrInsufficientStock 业务性失败：可用库存不足（或商品不存在），驱动 saga 的失败分支
	ErrInsufficientStock = errors.New("insufficient stock or unknown product")
	// ErrLockUnavailable 瞬时竞争：排队超时没抢到商品锁，对 saga 而言与库存不足同等处理
	ErrLockUnavailable = errors.New("inventory lock unavailable")
	// ErrItemNotFound 查询不到商品
	ErrItemNotFound = errors.New("inventory item not found")
)

// Item 是某个商品的库存计数。
// available 只通过"available >= q"守护下的条件更新递减，
// reserved 与之同步增减，两者的变化永远发生在同一条 UPDATE 里。
type Item struct {
	ProductID string `gorm:"column:product_id;primaryKey;size:64" json:"productId"`
	Available int    `gorm:"column:available" json:"available"`
	Reserved  int    `gorm:"column:reserved" json:"reserved"`
}

func (Item) TableName() string { return "inventory" }

// Repository 声明库存表的操作。
// Reserve 在单条 UPDATE 里完成条件检查和扣减，这是即便锁失效时的最后防线。
type Repository interface {
	Upsert(ctx context.Context, productID string, available int) error
	// Reserve 影响行数为 0 时返回 ErrInsufficientStock
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
	Find(ctx context.Context, productID string) (*Item, error)
}
