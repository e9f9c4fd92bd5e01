// internal/service/inventory/interfaces/order_event_consumer.go
package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dtx/internal/pkg/database"
	"dtx/internal/pkg/events"
	"dtx/internal/pkg/idempotency"
	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/metrics"
	"dtx/internal/pkg/mq"
	"dtx/internal/pkg/outbox"
	"dtx/internal/service/inventory/application"
	"dtx/internal/service/inventory/domain"
)

// OrderEventConsumer 消费订单侧的 ORDER_CREATED 事件：
// 先按消息键做幂等判定，然后在同一个本地事务里完成预占尝试
// 和结果事件的 outbox 写入，提交后立即触发一轮投递。
type OrderEventConsumer struct {
	idem      idempotency.Store
	svc       *application.InventoryService
	outbox    outbox.Store
	txm       database.TxManager
	publisher *outbox.Publisher
	tracer    trace.Tracer
}

func NewOrderEventConsumer(
	idem idempotency.Store,
	svc *application.InventoryService,
	outboxStore outbox.Store,
	txm database.TxManager,
	publisher *outbox.Publisher,
) *OrderEventConsumer {
	return &OrderEventConsumer{
		idem:      idem,
		svc:       svc,
		outbox:    outboxStore,
		txm:       txm,
		publisher: publisher,
		tracer:    otel.Tracer("inventory-service"),
	}
}

// Tags 返回本消费者关心的事件类型
func (c *OrderEventConsumer) Tags() []string {
	return []string{events.TypeOrderCreated}
}

// Handle 处理一条消息。返回非 nil 表示基础设施故障，交给 transport 重投；
// 业务性失败（库存不足、抢锁超时）在这里转成补偿事件，不向外传播。
//
// 注意这里是 claim-before-handle：先占幂等键再执行业务。代价是
// 占键之后业务失败的话，重投会被当作重复静默丢掉（见 DESIGN.md）。
func (c *OrderEventConsumer) Handle(ctx context.Context, msg mq.Message) error {
	ctx, span := c.tracer.Start(ctx, "inventory.ConsumeOrderEvent",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.tag", msg.Tag),
			attribute.String("messaging.key", msg.Key),
		))
	defer span.End()

	key := idempotency.MessageKey(msg.Tag, msg.Key)
	claimed, err := c.idem.Claim(ctx, key)
	if err != nil {
		return errors.Wrap(err, "claim message")
	}
	if !claimed {
		// at-least-once 下的正常现象，静默跳过
		metrics.DuplicateMessages.Inc()
		span.AddEvent("duplicate message skipped")
		return nil
	}

	var evt events.OrderCreated
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		// 反序列化失败目前与瞬时 IO 同路径重投；永久畸形的消息会
		// 无限循环，需要死信阈值兜底，这是已知的设计缺口
		return errors.Wrap(err, "unmarshal order created event")
	}

	err = c.txm.Do(ctx, func(ctx context.Context) error {
		if rerr := c.svc.Reserve(ctx, evt.ProductID, evt.Quantity); rerr != nil {
			if errors.Is(rerr, domain.ErrInsufficientStock) || errors.Is(rerr, domain.ErrLockUnavailable) {
				logger.Ctx(ctx).Warn().Err(rerr).
					Str("order_id", evt.OrderID).Str("product_id", evt.ProductID).
					Msg("reservation failed, emitting compensation event")
				return c.appendOutcome(ctx, evt.OrderID, events.TypeInventoryReserveFailed, events.InventoryReserveFailed{
					OrderID:   evt.OrderID,
					ProductID: evt.ProductID,
					Quantity:  evt.Quantity,
					Reason:    rerr.Error(),
				})
			}
			return rerr
		}
		return c.appendOutcome(ctx, evt.OrderID, events.TypeInventoryReserved, events.InventoryReserved{
			OrderID:   evt.OrderID,
			ProductID: evt.ProductID,
			Quantity:  evt.Quantity,
		})
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	// 事务已提交，立即投递结果事件
	c.publisher.Trigger(ctx)
	return nil
}

func (c *OrderEventConsumer) appendOutcome(ctx context.Context, orderID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal outcome event")
	}
	return c.outbox.Append(ctx, orderID, eventType, body)
}
