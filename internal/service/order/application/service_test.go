// internal/service/order/application/service_test.go
package application

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtx/internal/pkg/database"
	"dtx/internal/pkg/events"
	"dtx/internal/pkg/mq"
	"dtx/internal/pkg/outbox"
	"dtx/internal/service/order/domain"
	"dtx/internal/service/order/infrastructure"
)

func newService() (*OrderService, *outbox.MemoryStore) {
	store := outbox.NewMemoryStore()
	bus := mq.NewMemoryBus(10 * time.Millisecond)
	publisher := outbox.NewPublisher(store, bus.Producer("order-events"), 50, time.Second)
	svc := NewOrderService(infrastructure.NewMemoryRepository(), store, database.NopTxManager{}, publisher)
	return svc, store
}

func TestPlaceOrderCreatesPendingWithOutboxRecord(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	orderID, err := svc.PlaceOrder(ctx, "p1", 2)
	require.NoError(t, err)
	_, err = uuid.Parse(orderID)
	require.NoError(t, err)

	o, err := svc.Get(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, "p1", o.ProductID)
	assert.Equal(t, 2, o.Quantity)

	records := store.All()
	require.Len(t, records, 1)
	assert.Equal(t, orderID, records[0].AggregateID)
	assert.Equal(t, events.TypeOrderCreated, records[0].EventType)

	var payload events.OrderCreated
	require.NoError(t, json.Unmarshal(records[0].Payload, &payload))
	assert.Equal(t, events.OrderCreated{OrderID: orderID, ProductID: "p1", Quantity: 2}, payload)

	// 提交后立即触发了一轮投递
	assert.Equal(t, outbox.StatusSent, records[0].Status)
}

func TestConfirmAndCancel(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	first, err := svc.PlaceOrder(ctx, "p1", 1)
	require.NoError(t, err)
	second, err := svc.PlaceOrder(ctx, "p1", 1)
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(ctx, first))
	require.NoError(t, svc.Cancel(ctx, second))

	o, err := svc.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, o.Status)

	o, err = svc.Get(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, o.Status)

	// 重复确认是冗余写，不报错
	require.NoError(t, svc.Confirm(ctx, first))
}

func TestGetUnknownOrder(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestListNewestFirst(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	first, err := svc.PlaceOrder(ctx, "p1", 1)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := svc.PlaceOrder(ctx, "p2", 1)
	require.NoError(t, err)

	orders, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second, orders[0].ID)
	assert.Equal(t, first, orders[1].ID)
}
