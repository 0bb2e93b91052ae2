// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// CreateWithLines 在一个本地事务中保存订单及其明细，并回填 ID。
	// reference 重复时返回 ErrDuplicateReference。
	CreateWithLines(ctx context.Context, order *Order, lines []PurchaseLine) error

	// FindByID 根据 ID 查找订单，不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id uint) (*Order, error)

	FindAll(ctx context.Context) ([]Order, error)

	// FindLinesByOrderID 返回订单明细，订单不存在时返回 ErrOrderNotFound。
	FindLinesByOrderID(ctx context.Context, orderID uint) ([]OrderLine, error)
}
