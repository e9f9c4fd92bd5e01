// internal/service/inventory/application/service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dtx/internal/pkg/dlock"
	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/metrics"
	"dtx/internal/service/inventory/domain"
)

const lockKeyPrefix = "lock:inventory:"

// InventoryService 负责库存的预占与释放。
// 商品锁串行化跨进程的并发修改，条件更新是锁失效时的最后防线，
// 两道保障叠加（belt and suspenders）。
type InventoryService struct {
	repo     domain.Repository
	locker   dlock.Locker
	lockWait time.Duration
	lockHold time.Duration
	tracer   trace.Tracer
}

func NewInventoryService(repo domain.Repository, locker dlock.Locker, lockWait, lockHold time.Duration) *InventoryService {
	return &InventoryService{
		repo:     repo,
		locker:   locker,
		lockWait: lockWait,
		lockHold: lockHold,
		tracer:   otel.Tracer("inventory-service"),
	}
}

// Seed 初始化商品可用库存
func (s *InventoryService) Seed(ctx context.Context, productID string, available int) error {
	return s.repo.Upsert(ctx, productID, available)
}

// Reserve 在商品锁保护下做条件扣减。
// 锁在条件更新前一刻拿到，所有出口路径都释放，中间不做别的远程调用。
// 排队超时返回 ErrLockUnavailable，库存不够返回 ErrInsufficientStock，
// 两者对调用方都意味着"预占没有发生"。
func (s *InventoryService) Reserve(ctx context.Context, productID string, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Reserve", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("product.quantity", quantity),
	))
	defer span.End()

	lock, err := s.locker.TryAcquire(ctx, lockKeyPrefix+productID, s.lockWait, s.lockHold)
	if err != nil {
		if errors.Is(err, dlock.ErrNotAcquired) {
			metrics.Reservations.WithLabelValues("lock_unavailable").Inc()
			span.SetStatus(codes.Error, "lock unavailable")
			return domain.ErrLockUnavailable
		}
		span.RecordError(err)
		return err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("product_id", productID).Msg("failed to release inventory lock")
		}
	}()

	if err := s.repo.Reserve(ctx, productID, quantity); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.Reservations.WithLabelValues("insufficient_stock").Inc()
			span.SetStatus(codes.Error, "insufficient stock")
		} else {
			span.RecordError(err)
		}
		return err
	}

	metrics.Reservations.WithLabelValues("success").Inc()
	span.AddEvent("stock reserved")
	return nil
}

// Release 是预占的精确逆操作（补偿路径）。
// 单写者的补偿本身不依赖锁的正确性，这里取锁只为与 Reserve 对称。
func (s *InventoryService) Release(ctx context.Context, productID string, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "inventory.Release", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("product.quantity", quantity),
	))
	defer span.End()

	lock, err := s.locker.TryAcquire(ctx, lockKeyPrefix+productID, s.lockWait, s.lockHold)
	if err == nil {
		defer lock.Release(ctx)
	} else if !errors.Is(err, dlock.ErrNotAcquired) {
		span.RecordError(err)
		return err
	}

	return s.repo.Release(ctx, productID, quantity)
}

// Get 按商品 ID 查库存
func (s *InventoryService) Get(ctx context.Context, productID string) (*domain.Item, error) {
	return s.repo.Find(ctx, productID)
}
