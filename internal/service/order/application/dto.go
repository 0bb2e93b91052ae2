// internal/service/order/application/dto.go
package application

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ecommerce/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	Reference     string                `json:"reference"`
	Amount        decimal.Decimal       `json:"amount"`
	PaymentMethod domain.PaymentMethod  `json:"paymentMethod"`
	CustomerID    string                `json:"customerId"`
	Products      []domain.PurchaseLine `json:"products"`
}

// Validate 检查请求结构，返回 字段名 -> 错误信息，没有错误时返回 nil。
// 数量是否为正由库存服务判定。
func (r *CreateOrderRequest) Validate() map[string]string {
	fields := map[string]string{}
	if r.Reference == "" {
		fields["reference"] = "Order reference is required"
	}
	if !r.Amount.IsPositive() {
		fields["amount"] = "Order amount should be positive"
	}
	if !r.PaymentMethod.Valid() {
		fields["paymentMethod"] = "Payment method should be one of PAYPAL, CREDIT_CARD, VISA, MASTER_CARD, BITCOIN"
	}
	if r.CustomerID == "" {
		fields["customerId"] = "Customer should be present"
	}
	if len(r.Products) == 0 {
		fields["products"] = "You should at least purchase one product"
	}
	for i, p := range r.Products {
		if p.ProductID == 0 {
			fields[fmt.Sprintf("products[%d].productId", i)] = "Product is mandatory"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// PlaceOrderResponse 是下单成功的响应体
type PlaceOrderResponse struct {
	OrderID uint `json:"orderId"`
}

type OrderResponse struct {
	ID            uint                 `json:"id"`
	Reference     string               `json:"reference"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	CustomerID    string               `json:"customerId"`
	CreatedAt     time.Time            `json:"createdAt"`
}

type OrderLineResponse struct {
	ID        uint    `json:"id"`
	ProductID uint    `json:"productId"`
	Quantity  float64 `json:"quantity"`
}

func toOrderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		Reference:     o.Reference,
		Amount:        o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		CustomerID:    o.CustomerID,
		CreatedAt:     o.CreatedAt,
	}
}

func toOrderLineResponse(l domain.OrderLine) OrderLineResponse {
	return OrderLineResponse{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity}
}
