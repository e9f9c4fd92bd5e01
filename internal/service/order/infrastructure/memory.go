// internal/service/order/infrastructure/memory.go
package infrastructure

import (
	"context"
	"sort"
	"sync"

	"dtx/internal/service/order/domain"
)

// MemoryRepository 是进程内实现，用于单进程部署形态和测试
type MemoryRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryRepository) Insert(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order, ok := r.orders[id]; ok {
		order.Status = status
	}
	return nil
}

func (r *MemoryRepository) Find(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *MemoryRepository) FindAll(_ context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		out = append(out, *order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
