// internal/service/order/interfaces/http_handler_test.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dtx/internal/pkg/database"
	"dtx/internal/pkg/mq"
	"dtx/internal/pkg/outbox"
	"dtx/internal/service/order/application"
	"dtx/internal/service/order/domain"
	"dtx/internal/service/order/infrastructure"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := outbox.NewMemoryStore()
	bus := mq.NewMemoryBus(10 * time.Millisecond)
	publisher := outbox.NewPublisher(store, bus.Producer("order-events"), 50, time.Second)
	svc := application.NewOrderService(infrastructure.NewMemoryRepository(), store, database.NopTxManager{}, publisher)

	mux := http.NewServeMux()
	NewOrderHandler(svc).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPlaceOrderAcceptedAsPending(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/orders/place", "application/json",
		strings.NewReader(`{"productId":"p1","quantity":2}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Accepted bool   `json:"accepted"`
		OrderID  string `json:"orderId"`
		Status   string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Accepted)
	assert.NotEmpty(t, body.OrderID)
	assert.Equal(t, string(domain.StatusPending), body.Status)

	// 刚受理的订单立即可查
	getResp, err := http.Get(srv.URL + "/orders/" + body.OrderID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestPlaceOrderBadRequest(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []string{
		`not json`,
		`{"productId":"","quantity":1}`,
		`{"productId":"p1","quantity":0}`,
	} {
		resp, err := http.Post(srv.URL+"/orders/place", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
	}
}

func TestListOrders(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/orders/place", "application/json",
			strings.NewReader(`{"productId":"p1","quantity":1}`))
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var orders []domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
	assert.Len(t, orders, 3)
}

func TestGetUnknownOrderReturns404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/orders/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
