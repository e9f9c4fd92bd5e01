// internal/pkg/events/events.go
package events

// 订单与库存两个服务之间唯一的契约就是这里的事件定义。
// 两边各自只依赖本文件，互不直接调用。

const (
	TypeOrderCreated           = "ORDER_CREATED"
	TypeInventoryReserved      = "INVENTORY_RESERVED"
	TypeInventoryReserveFailed = "INVENTORY_RESERVE_FAILED"
)

// OrderCreated 订单服务落库 PENDING 订单后发出
type OrderCreated struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// InventoryReserved 库存预占成功后由库存服务发出
type InventoryReserved struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// InventoryReserveFailed 预占失败（库存不足或抢锁超时）后由库存服务发出，
// Reason 仅用于展示和排查，不参与流程决策
type InventoryReserveFailed struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}
