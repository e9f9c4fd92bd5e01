// internal/pkg/mq/kafka.go
package mq

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"dtx/internal/pkg/logger"
)

const tagHeader = "x-event-tag"

// KafkaProducer 把 Message 写入 Kafka：Key 作为分区键，Tag 放进 header，
// 同时注入追踪上下文，下游消费时还原
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			// topic 由部署脚本建好，这里不自动创建
			AllowAutoTopicCreation: false,
		},
	}
}

func (p *KafkaProducer) Send(ctx context.Context, msg Message) error {
	headers := []kafka.Header{{Key: tagHeader, Value: []byte(msg.Tag)}}

	carrier := KafkaHeaderCarrier(headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	headers = []kafka.Header(carrier)

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.Key),
		Value:   msg.Body,
		Headers: headers,
	})
	return errors.Wrap(err, "kafka write")
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer 基于 consumer group 的拉取循环。
// 只有 handler 成功后才提交 offset，处理失败时原地延迟重试，
// 进程崩溃则由 broker 按未提交的 offset 重投——两条路都保证 at-least-once。
type KafkaConsumer struct {
	reader     *kafka.Reader
	tags       []string
	handler    Handler
	retryDelay time.Duration
}

func NewKafkaConsumer(brokers []string, topic, groupID string, retryDelay time.Duration) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		retryDelay: retryDelay,
	}
}

func (c *KafkaConsumer) Subscribe(tags []string, handler Handler) {
	c.tags = tags
	c.handler = handler
}

func (c *KafkaConsumer) Start(ctx context.Context) error {
	logger.Logger.Info().Str("topic", c.reader.Config().Topic).Msg("kafka consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Logger.Error().Err(err).Msg("fetch message failed, retrying")
			time.Sleep(time.Second)
			continue
		}

		msg := Message{
			Topic: c.reader.Config().Topic,
			Tag:   headerValue(m.Headers, tagHeader),
			Key:   string(m.Key),
			Body:  m.Value,
		}

		if containsTag(c.tags, msg.Tag) {
			carrier := KafkaHeaderCarrier(m.Headers)
			msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)

			// 业务失败已在 handler 内部转成补偿事件，走到这里的 error
			// 都是基础设施问题，延迟后重投同一条消息
			for {
				err := c.handler(msgCtx, msg)
				if err == nil {
					break
				}
				logger.Ctx(msgCtx).Error().Err(err).
					Str("tag", msg.Tag).Str("key", msg.Key).
					Msg("handler failed, message will be redelivered")
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(c.retryDelay):
				}
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Logger.Error().Err(err).Msg("commit offset failed")
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// KafkaHeaderCarrier 让 otel propagator 可以读写 kafka header
type KafkaHeaderCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*KafkaHeaderCarrier)(nil)

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
