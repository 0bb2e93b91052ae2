package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 对应数据库中的 customer_order 表
type OrderModel struct {
	ID            uint             `gorm:"primaryKey;autoIncrement"`
	Reference     string           `gorm:"size:64;not null;uniqueIndex"`
	TotalAmount   decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	PaymentMethod string           `gorm:"size:32;not null"`
	CustomerID    string           `gorm:"size:64;not null;index"`
	Lines         []OrderLineModel `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time
}

func (OrderModel) TableName() string {
	return "customer_order"
}

// OrderLineModel 对应数据库中的 customer_line 表
type OrderLineModel struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	OrderID   uint    `gorm:"index;not null"`
	ProductID uint    `gorm:"not null"`
	Quantity  float64 `gorm:"not null"`
}

func (OrderLineModel) TableName() string {
	return "customer_line"
}
