// internal/pkg/mq/memory.go
package mq

import (
	"context"
	"sync"
	"time"

	"dtx/internal/pkg/logger"
)

// MemoryBus 是进程内的消息总线，语义上对齐 Kafka 驱动：
// 异步投递、at-least-once、失败延迟重投、不保证跨 Key 顺序。
// 用于单进程部署形态和测试。
type MemoryBus struct {
	mu         sync.RWMutex
	subs       map[string][]*memorySubscription
	retryDelay time.Duration
}

type memorySubscription struct {
	tags    []string
	handler Handler
	ctx     context.Context
}

func NewMemoryBus(retryDelay time.Duration) *MemoryBus {
	return &MemoryBus{
		subs:       make(map[string][]*memorySubscription),
		retryDelay: retryDelay,
	}
}

// Producer 返回绑定到 topic 的生产者
func (b *MemoryBus) Producer(topic string) Producer {
	return &memoryProducer{bus: b, topic: topic}
}

// Consumer 返回绑定到 topic 的消费者
func (b *MemoryBus) Consumer(topic string) Consumer {
	return &memoryConsumer{bus: b, topic: topic}
}

func (b *MemoryBus) dispatch(msg Message) {
	b.mu.RLock()
	subs := append([]*memorySubscription(nil), b.subs[msg.Topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if !containsTag(sub.tags, msg.Tag) {
			continue
		}
		go b.deliver(sub, msg)
	}
}

// deliver 重投直到消费成功或订阅方退出
func (b *MemoryBus) deliver(sub *memorySubscription, msg Message) {
	for {
		err := sub.handler(sub.ctx, msg)
		if err == nil {
			return
		}
		logger.Ctx(sub.ctx).Warn().Err(err).
			Str("tag", msg.Tag).Str("key", msg.Key).
			Msg("memory bus handler failed, redelivering")
		select {
		case <-sub.ctx.Done():
			return
		case <-time.After(b.retryDelay):
		}
	}
}

func (b *MemoryBus) register(topic string, sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], sub)
}

func (b *MemoryBus) unregister(topic string, sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.subs[topic]
	filtered := make([]*memorySubscription, 0, len(items))
	for _, item := range items {
		if item != sub {
			filtered = append(filtered, item)
		}
	}
	b.subs[topic] = filtered
}

type memoryProducer struct {
	bus   *MemoryBus
	topic string
}

func (p *memoryProducer) Send(_ context.Context, msg Message) error {
	msg.Topic = p.topic
	p.bus.dispatch(msg)
	return nil
}

func (p *memoryProducer) Close() error { return nil }

type memoryConsumer struct {
	bus     *MemoryBus
	topic   string
	tags    []string
	handler Handler
}

func (c *memoryConsumer) Subscribe(tags []string, handler Handler) {
	c.tags = tags
	c.handler = handler
}

func (c *memoryConsumer) Start(ctx context.Context) error {
	sub := &memorySubscription{tags: c.tags, handler: c.handler, ctx: ctx}
	c.bus.register(c.topic, sub)
	<-ctx.Done()
	c.bus.unregister(c.topic, sub)
	return nil
}

func (c *memoryConsumer) Close() error { return nil }

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
