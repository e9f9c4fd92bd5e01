// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"dtx/internal/service/order/application"
	"dtx/internal/service/order/domain"
)

// OrderHandler 封装订单服务的 HTTP 处理器
type OrderHandler struct {
	svc *application.OrderService
}

func NewOrderHandler(svc *application.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes 在 ServeMux 上注册业务路由（/healthz、/metrics 由 bootstrap 统一注册）
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders/place", h.place)
	mux.HandleFunc("GET /orders", h.list)
	mux.HandleFunc("GET /orders/{orderId}", h.get)
}

type placeOrderRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type placeOrderResponse struct {
	Accepted bool          `json:"accepted"`
	OrderID  string        `json:"orderId,omitempty"`
	Status   domain.Status `json:"status,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// place 受理下单；订单是否最终成立由异步的库存预占结果决定，
// 这里只返回"已受理 + PENDING"
func (h *OrderHandler) place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" || req.Quantity <= 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	orderID, err := h.svc.PlaceOrder(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(placeOrderResponse{Accepted: false, Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(placeOrderResponse{
		Accepted: true,
		OrderID:  orderID,
		Status:   domain.StatusPending,
	})
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

func (h *OrderHandler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Get(r.Context(), r.PathValue("orderId"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}
