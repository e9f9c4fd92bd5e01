// internal/pkg/outbox/publisher.go
package outbox

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/metrics"
	"dtx/internal/pkg/mq"
)

// Publisher 把 NEW 记录搬运到消息总线。
// 两个触发源：固定间隔的兜底扫描，和业务事务提交后的立即触发。
// 同一进程内任意时刻至多一轮投递在跑——用 CAS 做非阻塞互斥，
// 撞上正在跑的一轮时直接跳过而不是排队，保证触发方不被拖住。
type Publisher struct {
	store     Store
	producer  mq.Producer
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer

	inFlight atomic.Bool
}

func NewPublisher(store Store, producer mq.Producer, batchSize int, interval time.Duration) *Publisher {
	return &Publisher{
		store:     store,
		producer:  producer,
		batchSize: batchSize,
		interval:  interval,
		tracer:    otel.Tracer("outbox"),
	}
}

// Start 启动兜底扫描循环，阻塞到 ctx 取消
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Trigger(ctx)
		}
	}
}

// Trigger 同步执行一轮投递；已有一轮在跑时是 no-op
func (p *Publisher) Trigger(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer p.inFlight.Store(false)

	p.publishBatch(ctx)
}

func (p *Publisher) publishBatch(ctx context.Context) {
	records, err := p.store.FetchNew(ctx, p.batchSize)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to fetch outbox records")
		return
	}

	for _, record := range records {
		p.publishOne(ctx, record)
	}
}

// publishOne 的失败只影响这一条记录：记下 retries/last_error 后留在 NEW，
// 下一轮继续；绝不中断整个批次
func (p *Publisher) publishOne(ctx context.Context, record Record) {
	ctx, span := p.tracer.Start(ctx, "outbox.Publish", trace.WithAttributes(
		attribute.Int64("outbox.id", int64(record.ID)),
		attribute.String("outbox.event_type", record.EventType),
		attribute.String("outbox.aggregate_id", record.AggregateID),
		attribute.Int("outbox.retries", record.Retries),
	))
	defer span.End()

	err := p.producer.Send(ctx, mq.Message{
		Tag:  record.EventType,
		Key:  record.AggregateID,
		Body: record.Payload,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.OutboxPublishFailures.WithLabelValues(record.EventType).Inc()
		logger.Ctx(ctx).Error().Err(err).
			Uint64("id", record.ID).Str("event_type", record.EventType).
			Msg("failed to publish outbox record")

		if markErr := p.store.MarkFailed(ctx, record.ID, err); markErr != nil {
			logger.Ctx(ctx).Error().Err(markErr).Uint64("id", record.ID).
				Msg("failed to record outbox publish failure")
		}
		return
	}

	metrics.OutboxPublished.WithLabelValues(record.EventType).Inc()

	// 投递成功但标记失败：按成功处理，这条记录下一轮会被重发，
	// 由下游的幂等消费吸收重复
	if err := p.store.MarkSent(ctx, record.ID); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Uint64("id", record.ID).
			Msg("published but failed to mark sent, record will be resent")
	}
}
