package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"

	"ecommerce/internal/service/product/domain"
)

// ProductModel 对应数据库中的 product 表
type ProductModel struct {
	ID                uint            `gorm:"primaryKey;autoIncrement"`
	Name              string          `gorm:"size:255;not null"`
	Description       string          `gorm:"type:text"`
	AvailableQuantity float64         `gorm:"not null;check:available_quantity >= 0"`
	Price             decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CategoryID        uint            `gorm:"index;not null"`
	Category          CategoryModel   `gorm:"foreignKey:CategoryID"`
	Version           uint            `gorm:"not null;default:1"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "product"
}

// CategoryModel 对应数据库中的 category 表
type CategoryModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
}

func (CategoryModel) TableName() string {
	return "category"
}

// ReservationModel 对应 stock_reservation 表，每个订单号一行
type ReservationModel struct {
	ID        uint                     `gorm:"primaryKey;autoIncrement"`
	Reference string                   `gorm:"size:64;not null;uniqueIndex"`
	Status    string                   `gorm:"size:16;not null"`
	Lines     []domain.PurchaseRequest `gorm:"type:text;serializer:json"`
	Version   uint                     `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ReservationModel) TableName() string {
	return "stock_reservation"
}
