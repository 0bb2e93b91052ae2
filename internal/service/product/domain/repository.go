package domain

import "context"

// StockLedger 是库存的持久化边界，只有预留引擎会调用写方法
type StockLedger interface {
	// FindAllByIDsOrderByID 返回存在的商品，按 ID 升序
	FindAllByIDsOrderByID(ctx context.Context, ids []uint) ([]Product, error)
	// FindReservation 按订单号查找预留记录，不存在时返回 ErrReservationNotFound
	FindReservation(ctx context.Context, reference string) (*Reservation, error)
	// ApplyStockChanges 在一个事务中写入全部变更以及可选的预留记录迁移；
	// 任一商品版本不匹配、或预留记录已被并发修改时返回 ErrStockConflict 并整体回滚
	ApplyStockChanges(ctx context.Context, changes []StockChange, transition *ReservationTransition) error
}

type CatalogRepository interface {
	CreateProduct(ctx context.Context, p *Product) error
	FindProductByID(ctx context.Context, id uint) (*Product, error)
	FindAllProducts(ctx context.Context) ([]Product, error)
	CreateCategory(ctx context.Context, c *Category) error
	FindCategoryByID(ctx context.Context, id uint) (*Category, error)
	FindAllCategories(ctx context.Context) ([]Category, error)
}
