// internal/service/inventory/infrastructure/memory.go
package infrastructure

import (
	"context"
	"sync"

	"dtx/internal/service/inventory/domain"
)

// MemoryRepository 是进程内实现，条件更新在互斥锁内完成，
// 原子性语义与 MySQL 的单行 UPDATE 对齐。用于单进程部署形态和测试。
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]*domain.Item
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*domain.Item)}
}

func (r *MemoryRepository) Upsert(_ context.Context, productID string, available int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item, ok := r.items[productID]; ok {
		item.Available = available
		return nil
	}
	r.items[productID] = &domain.Item{ProductID: productID, Available: available}
	return nil
}

func (r *MemoryRepository) Reserve(_ context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[productID]
	if !ok || item.Available < quantity {
		return domain.ErrInsufficientStock
	}
	item.Available -= quantity
	item.Reserved += quantity
	return nil
}

func (r *MemoryRepository) Release(_ context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item, ok := r.items[productID]; ok {
		item.Available += quantity
		item.Reserved -= quantity
	}
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, productID string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}
