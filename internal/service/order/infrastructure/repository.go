// internal/service/order/infrastructure/repository.go
package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"dtx/internal/pkg/database"
	"dtx/internal/service/order/domain"
)

// GormRepository 基于 gorm/MySQL 实现 domain.Repository
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Insert(ctx context.Context, order *domain.Order) error {
	return errors.Wrap(r.conn(ctx).Create(order).Error, "insert order")
}

func (r *GormRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	err := r.conn(ctx).Model(&domain.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
	return errors.Wrap(err, "update order status")
}

func (r *GormRepository) Find(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := r.conn(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find order")
	}
	return &order, nil
}

func (r *GormRepository) FindAll(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.conn(ctx).Order("created_at desc").Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}
