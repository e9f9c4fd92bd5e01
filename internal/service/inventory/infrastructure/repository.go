// internal/service/inventory/infrastructure/repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dtx/internal/pkg/database"
	"dtx/internal/service/inventory/domain"
)

// GormRepository 基于 gorm/MySQL 实现 domain.Repository
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Upsert 初始化/重置某个商品的可用库存，reserved 不动
func (r *GormRepository) Upsert(ctx context.Context, productID string, available int) error {
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"available"}),
	}).Create(&domain.Item{
		ProductID: productID,
		Available: available,
		Reserved:  0,
	}).Error
	return errors.Wrap(err, "upsert inventory item")
}

// Reserve 在一条 UPDATE 里完成"够不够"的判断和扣减，
// 0 行生效统一当作库存不足（包含商品不存在）
func (r *GormRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	result := r.conn(ctx).Model(&domain.Item{}).
		Where("product_id = ? AND available >= ?", productID, quantity).
		Updates(map[string]interface{}{
			"available": gorm.Expr("available - ?", quantity),
			"reserved":  gorm.Expr("reserved + ?", quantity),
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "reserve inventory")
	}
	if result.RowsAffected == 0 {
		return domain.ErrInsufficientStock
	}
	return nil
}

// Release 是 Reserve 的逆操作，补偿路径用，无条件加回
func (r *GormRepository) Release(ctx context.Context, productID string, quantity int) error {
	err := r.conn(ctx).Model(&domain.Item{}).
		Where("product_id = ?", productID).
		Updates(map[string]interface{}{
			"available": gorm.Expr("available + ?", quantity),
			"reserved":  gorm.Expr("reserved - ?", quantity),
		}).Error
	return errors.Wrap(err, "release inventory")
}

func (r *GormRepository) Find(ctx context.Context, productID string) (*domain.Item, error) {
	var item domain.Item
	err := r.conn(ctx).Where("product_id = ?", productID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find inventory item")
	}
	return &item, nil
}

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}
