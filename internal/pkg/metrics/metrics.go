// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 核心链路的业务指标，通过 /metrics 暴露给 Prometheus 抓取

var (
	// OutboxPublished 统计 outbox 成功投递到消息总线的事件数
	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dtx_outbox_published_total",
		Help: "Number of outbox records successfully published to the bus.",
	}, []string{"event_type"})

	// OutboxPublishFailures 统计单条投递失败次数（会留在 NEW 状态等待重试）
	OutboxPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dtx_outbox_publish_failures_total",
		Help: "Number of per-record publish failures, retried on the next pass.",
	}, []string{"event_type"})

	// Reservations 按结果统计库存预占: success / insufficient_stock / lock_unavailable
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dtx_inventory_reservations_total",
		Help: "Inventory reservation attempts by outcome.",
	}, []string{"result"})

	// DuplicateMessages 统计按幂等键拦截的重复消息，at-least-once 投递下属于正常现象
	DuplicateMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dtx_duplicate_messages_skipped_total",
		Help: "Messages skipped because their idempotency key was already claimed.",
	})
)
