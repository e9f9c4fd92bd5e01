// internal/pkg/mq/message.go
package mq

import "context"

// Message 是总线上流动的统一消息形态。
// Tag 是事件类型，Key 是聚合 ID；总线只承诺 at-least-once 投递，
// 不保证跨 Key 的顺序，消费方必须把每条消息当作自包含的事实处理。
type Message struct {
	Topic string
	Tag   string
	Key   string
	Body  []byte
}

// Producer 向总线投递一条消息
type Producer interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Handler 处理一条收到的消息。
// 返回 nil 表示消费成功；返回 error 表示希望稍后重投（transport 层负责重试）。
type Handler func(ctx context.Context, msg Message) error

// Consumer 订阅一个 topic 下指定 tag 的消息
type Consumer interface {
	// Subscribe 必须在 Start 之前调用
	Subscribe(tags []string, handler Handler)
	// Start 阻塞消费直到 ctx 取消
	Start(ctx context.Context) error
	Close() error
}
