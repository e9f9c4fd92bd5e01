// internal/service/order/domain/order.go
package domain

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrOrderNotFound 查询不到订单
var ErrOrderNotFound = errors.New("order not found")

// Status 定义订单的生命周期状态
type Status string

const (
	StatusPending   Status = "PENDING"   // 已受理，等待库存预占结果
	StatusConfirmed Status = "CONFIRMED" // 预占成功，订单生效
	StatusCancelled Status = "CANCELLED" // 预占失败，订单作废
)

// Order 是订单聚合的根实体。
// 状态只会从 PENDING 走向 CONFIRMED 或 CANCELLED，终态不再变化；
// 状态流转仅由库存侧的结果事件驱动，订单服务自己从不碰库存。
type Order struct {
	ID        string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	ProductID string    `gorm:"column:product_id;size:64" json:"productId"`
	Quantity  int       `gorm:"column:quantity" json:"quantity"`
	Status    Status    `gorm:"column:status;size:16" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
}

func (Order) TableName() string { return "orders" }

// Repository 声明订单表的操作。
// UpdateStatus 是无条件单行写：重复确认/取消只是冗余写入，
// 上游的幂等消费已经把重复事件挡掉了。
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	Find(ctx context.Context, id string) (*Order, error)
	FindAll(ctx context.Context) ([]Order, error)
}
