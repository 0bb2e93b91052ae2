// internal/service/product/domain/product.go
package domain

import (
	"github.com/shopspring/decimal"
)

// Product 是商品目录中的一条记录，AvailableQuantity 由库存账本维护，任何时刻都不能小于 0。
type Product struct {
	ID                uint
	Name              string
	Description       string
	AvailableQuantity float64
	Price             decimal.Decimal
	CategoryID        uint
	CategoryName      string
	// Version 是乐观锁版本号，每次库存写入都会递增
	Version uint
}

type Category struct {
	ID          uint
	Name        string
	Description string
}

// PurchaseRequest 是一条扣减请求
type PurchaseRequest struct {
	ProductID uint    `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

// PurchaseResponse 记录实际扣减成功的一条明细
type PurchaseResponse struct {
	ProductID   uint            `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    float64         `json:"quantity"`
}

// StockChange 是一次提交中对单个商品的写入：新库存以及读取时看到的版本号
type StockChange struct {
	ProductID       uint
	NewQuantity     float64
	ExpectedVersion uint
}
