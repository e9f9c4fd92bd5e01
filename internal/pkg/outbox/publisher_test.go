// internal/pkg/outbox/publisher_test.go
package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtx/internal/pkg/mq"
)

// fakeProducer 记录收到的消息，可按需失败或阻塞
type fakeProducer struct {
	mu       sync.Mutex
	sent     []mq.Message
	failTags map[string]bool
	block    chan struct{}
}

func (p *fakeProducer) Send(ctx context.Context, msg mq.Message) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failTags[msg.Tag] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) messages() []mq.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mq.Message(nil), p.sent...)
}

func TestTriggerPublishesNewRecords(t *testing.T) {
	store := NewMemoryStore()
	producer := &fakeProducer{}
	pub := NewPublisher(store, producer, 50, time.Second)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "order-1", "ORDER_CREATED", []byte(`{"orderId":"order-1"}`)))
	require.NoError(t, store.Append(ctx, "order-2", "ORDER_CREATED", []byte(`{"orderId":"order-2"}`)))

	pub.Trigger(ctx)

	msgs := producer.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "ORDER_CREATED", msgs[0].Tag)
	assert.Equal(t, "order-1", msgs[0].Key)
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(msgs[0].Body))

	for _, r := range store.All() {
		assert.Equal(t, StatusSent, r.Status)
		assert.NotNil(t, r.SentAt)
	}
}

func TestTriggerAlreadySentIsNoop(t *testing.T) {
	store := NewMemoryStore()
	producer := &fakeProducer{}
	pub := NewPublisher(store, producer, 50, time.Second)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "order-1", "ORDER_CREATED", nil))
	pub.Trigger(ctx)
	pub.Trigger(ctx)

	assert.Len(t, producer.messages(), 1)
}

func TestSendFailureKeepsRecordNew(t *testing.T) {
	store := NewMemoryStore()
	producer := &fakeProducer{failTags: map[string]bool{"INVENTORY_RESERVED": true}}
	pub := NewPublisher(store, producer, 50, time.Second)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "order-1", "INVENTORY_RESERVED", nil))
	require.NoError(t, store.Append(ctx, "order-2", "ORDER_CREATED", nil))

	pub.Trigger(ctx)
	pub.Trigger(ctx)

	records := store.All()
	require.Len(t, records, 2)

	// 失败的那条留在 NEW，每一轮都会重试并累计失败信息
	assert.Equal(t, StatusNew, records[0].Status)
	assert.Equal(t, 2, records[0].Retries)
	assert.Equal(t, "broker unavailable", records[0].LastError)
	assert.Nil(t, records[0].SentAt)

	// 同批其余记录不受影响
	assert.Equal(t, StatusSent, records[1].Status)
	assert.Len(t, producer.messages(), 1)
}

func TestTriggerSkipsWhenRoundInFlight(t *testing.T) {
	store := NewMemoryStore()
	producer := &fakeProducer{block: make(chan struct{})}
	pub := NewPublisher(store, producer, 50, time.Second)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "order-1", "ORDER_CREATED", nil))

	done := make(chan struct{})
	go func() {
		pub.Trigger(ctx)
		close(done)
	}()

	// 等第一轮进入 Send 的阻塞点
	time.Sleep(50 * time.Millisecond)
	// 撞上在跑的一轮：立刻返回，不排队
	pub.Trigger(ctx)
	assert.Empty(t, producer.messages())

	close(producer.block)
	<-done
	assert.Len(t, producer.messages(), 1)
}

// markSentFailingStore 模拟「投出去了但标记失败」的窗口
type markSentFailingStore struct {
	*MemoryStore
	failures int
}

func (s *markSentFailingStore) MarkSent(ctx context.Context, id uint64) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	return s.MemoryStore.MarkSent(ctx, id)
}

func TestMarkSentFailureCausesResend(t *testing.T) {
	store := &markSentFailingStore{MemoryStore: NewMemoryStore(), failures: 1}
	producer := &fakeProducer{}
	pub := NewPublisher(store, producer, 50, time.Second)

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "order-1", "ORDER_CREATED", nil))

	pub.Trigger(ctx)
	// 记录仍是 NEW，下一轮重发同一条消息，重复由消费端幂等层吸收
	pub.Trigger(ctx)

	assert.Len(t, producer.messages(), 2)
	records := store.All()
	require.Len(t, records, 1)
	assert.Equal(t, StatusSent, records[0].Status)
}
