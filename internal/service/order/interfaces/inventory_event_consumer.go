// internal/service/order/interfaces/inventory_event_consumer.go
package interfaces

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dtx/internal/pkg/events"
	"dtx/internal/pkg/idempotency"
	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/metrics"
	"dtx/internal/pkg/mq"
	"dtx/internal/service/order/application"
)

// InventoryEventConsumer 消费库存侧的结果事件，驱动订单状态机：
// INVENTORY_RESERVED -> CONFIRMED，INVENTORY_RESERVE_FAILED -> CANCELLED。
// 消息键幂等判定与库存侧消费者同一套机制。
type InventoryEventConsumer struct {
	idem   idempotency.Store
	svc    *application.OrderService
	tracer trace.Tracer
}

func NewInventoryEventConsumer(idem idempotency.Store, svc *application.OrderService) *InventoryEventConsumer {
	return &InventoryEventConsumer{
		idem:   idem,
		svc:    svc,
		tracer: otel.Tracer("order-service"),
	}
}

// Tags 返回本消费者关心的事件类型
func (c *InventoryEventConsumer) Tags() []string {
	return []string{events.TypeInventoryReserved, events.TypeInventoryReserveFailed}
}

// Handle 处理一条结果事件。消息键只由 tag 和聚合 ID（订单号）决定，
// payload 在这条路径上用不到。
func (c *InventoryEventConsumer) Handle(ctx context.Context, msg mq.Message) error {
	ctx, span := c.tracer.Start(ctx, "order.ConsumeInventoryEvent",
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
		metrics.DuplicateMessages.Inc()
		span.AddEvent("duplicate message skipped")
		return nil
	}

	orderID := msg.Key
	switch msg.Tag {
	case events.TypeInventoryReserved:
		return c.svc.Confirm(ctx, orderID)
	case events.TypeInventoryReserveFailed:
		return c.svc.Cancel(ctx, orderID)
	default:
		// 订阅过滤应该挡住未知 tag，走到这里说明配置有问题
		logger.Ctx(ctx).Warn().Str("tag", msg.Tag).Msg("unexpected event tag, ignored")
		return nil
	}
}
