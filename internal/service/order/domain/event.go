// internal/service/order/domain/event.go
package domain

import "github.com/shopspring/decimal"

// OrderConfirmation 是下单成功后发布的事件，每次成功下单恰好产生一次。
// 投递语义为至少一次，消费方按 EventID 去重。
type OrderConfirmation struct {
	EventID        string             `json:"eventId"`
	OrderReference string             `json:"orderReference"`
	TotalAmount    decimal.Decimal    `json:"totalAmount"`
	PaymentMethod  PaymentMethod      `json:"paymentMethod"`
	Customer       Customer           `json:"customer"`
	Products       []PurchasedProduct `json:"products"`
}
