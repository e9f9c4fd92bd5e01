// internal/service/order/application/service.go
package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dtx/internal/pkg/database"
	"dtx/internal/pkg/events"
	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/outbox"
	"dtx/internal/service/order/domain"
)

// OrderService 编排订单的生命周期。
// PlaceOrder 在一个本地事务里同时落 PENDING 订单和 ORDER_CREATED
// 的 outbox 记录——这是整条 saga 的原子起点；Confirm/Cancel 只被
// 库存结果事件驱动，订单与库存之间不存在任何同步调用。
type OrderService struct {
	repo      domain.Repository
	outbox    outbox.Store
	txm       database.TxManager
	publisher *outbox.Publisher
	tracer    trace.Tracer
}

func NewOrderService(repo domain.Repository, outboxStore outbox.Store, txm database.TxManager, publisher *outbox.Publisher) *OrderService {
	return &OrderService{
		repo:      repo,
		outbox:    outboxStore,
		txm:       txm,
		publisher: publisher,
		tracer:    otel.Tracer("order-service"),
	}
}

// PlaceOrder 受理下单请求，返回新订单 ID。
// 事务提交后立即触发一轮 outbox 投递压低延迟，
// 即便这次触发丢了，publisher 的定时扫描也会兜底。
func (s *OrderService) PlaceOrder(ctx context.Context, productID string, quantity int) (string, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("product.quantity", quantity),
	))
	defer span.End()

	orderID := uuid.New().String()

	err := s.txm.Do(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, &domain.Order{
			ID:        orderID,
			ProductID: productID,
			Quantity:  quantity,
			Status:    domain.StatusPending,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}

		payload, err := json.Marshal(events.OrderCreated{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  quantity,
		})
		if err != nil {
			return errors.Wrap(err, "marshal order created event")
		}
		return s.outbox.Append(ctx, orderID, events.TypeOrderCreated, payload)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place order failed")
		return "", err
	}

	s.publisher.Trigger(ctx)

	logger.Ctx(ctx).Info().Str("order_id", orderID).Str("product_id", productID).
		Int("quantity", quantity).Msg("order accepted")
	span.AddEvent("order placed as PENDING")
	return orderID, nil
}

// Confirm 把订单置为 CONFIRMED（幂等：重复确认只是冗余写）
func (s *OrderService) Confirm(ctx context.Context, orderID string) error {
	logger.Ctx(ctx).Info().Str("order_id", orderID).Msg("order confirmed")
	return s.repo.UpdateStatus(ctx, orderID, domain.StatusConfirmed)
}

// Cancel 把订单置为 CANCELLED
func (s *OrderService) Cancel(ctx context.Context, orderID string) error {
	logger.Ctx(ctx).Info().Str("order_id", orderID).Msg("order cancelled")
	return s.repo.UpdateStatus(ctx, orderID, domain.StatusCancelled)
}

// Get 按 ID 查订单
func (s *OrderService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.Find(ctx, orderID)
}

// List 返回全部订单（新的在前）
func (s *OrderService) List(ctx context.Context) ([]domain.Order, error) {
	return s.repo.FindAll(ctx)
}
