// internal/service/order/domain/order.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod 是下单时选择的支付方式，本流程只记录，不发起支付
type PaymentMethod string

const (
	PaymentPaypal     PaymentMethod = "PAYPAL"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentVisa       PaymentMethod = "VISA"
	PaymentMasterCard PaymentMethod = "MASTER_CARD"
	PaymentBitcoin    PaymentMethod = "BITCOIN"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPaypal, PaymentCreditCard, PaymentVisa, PaymentMasterCard, PaymentBitcoin:
		return true
	}
	return false
}

// Order 是订单聚合的根实体，创建后不再修改
type Order struct {
	ID            uint
	Reference     string // 调用方提供，全局唯一
	TotalAmount   decimal.Decimal
	PaymentMethod PaymentMethod
	CustomerID    string
	CreatedAt     time.Time
}

// OrderLine 属于某个订单，与订单在同一次下单中创建
type OrderLine struct {
	ID        uint
	OrderID   uint
	ProductID uint
	Quantity  float64
}

// PurchaseLine 是下单请求中的一条商品明细
type PurchaseLine struct {
	ProductID uint    `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

// PurchasedProduct 是库存服务确认扣减的一条明细
type PurchasedProduct struct {
	ProductID   uint            `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    float64         `json:"quantity"`
}

// NewOrder 创建一个待持久化的订单实例
func NewOrder(reference string, amount decimal.Decimal, method PaymentMethod, customerID string) *Order {
	return &Order{
		Reference:     reference,
		TotalAmount:   amount,
		PaymentMethod: method,
		CustomerID:    customerID,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewOrderLines 按请求原始顺序为订单生成明细
func NewOrderLines(orderID uint, lines []PurchaseLine) []OrderLine {
	out := make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, OrderLine{OrderID: orderID, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}
