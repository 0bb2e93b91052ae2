package port

import (
	"context"

	"ecommerce/internal/service/order/domain"
)

// InventoryService 是库存服务的出站端口，预留与释放都以订单号为键。
type InventoryService interface {
	// PurchaseProducts 原子地预留一批明细并登记在 reference 名下，返回结果按商品 ID 升序。
	PurchaseProducts(ctx context.Context, reference string, lines []domain.PurchaseLine) ([]domain.PurchasedProduct, error)

	// ReleaseProducts 是 PurchaseProducts 的补偿操作，可以重放；
	// reference 名下没有预留时什么也不释放。
	ReleaseProducts(ctx context.Context, reference string) error
}
