// internal/service/inventory/interfaces/http_handler.go
package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"dtx/internal/service/inventory/application"
	"dtx/internal/service/inventory/domain"
)

// InventoryHandler 封装库存服务的 HTTP 处理器
type InventoryHandler struct {
	svc *application.InventoryService
}

func NewInventoryHandler(svc *application.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// RegisterRoutes 在 ServeMux 上注册业务路由（/healthz、/metrics 由 bootstrap 统一注册）
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /inventory/seed", h.seed)
	mux.HandleFunc("POST /inventory/reserve", h.reserve)
	mux.HandleFunc("POST /inventory/release", h.release)
	mux.HandleFunc("GET /inventory/{productId}", h.get)
}

type stockRequest struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
	Quantity  int    `json:"quantity"`
}

func (h *InventoryHandler) seed(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.svc.Seed(r.Context(), req.ProductID, req.Available); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// reserve 是同步预占入口；业务性失败回 409 并带上原因
func (h *InventoryHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" || req.Quantity <= 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.svc.Reserve(r.Context(), req.ProductID, req.Quantity); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrLockUnavailable) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *InventoryHandler) release(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" || req.Quantity <= 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.svc.Release(r.Context(), req.ProductID, req.Quantity); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *InventoryHandler) get(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	item, err := h.svc.Get(r.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}
