// internal/service/notification/domain/confirmation.go
package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidConfirmation = errors.New("invalid order confirmation")

// OrderConfirmation 是从 Kafka 收到的下单确认事件，只声明本服务用到的字段
type OrderConfirmation struct {
	EventID        string          `json:"eventId"`
	OrderReference string          `json:"orderReference"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PaymentMethod  string          `json:"paymentMethod"`
	Customer       Customer        `json:"customer"`
	Products       []Product       `json:"products"`
}

type Customer struct {
	ID        string `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

type Product struct {
	ProductID uint            `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  float64         `json:"quantity"`
}

func (c *OrderConfirmation) Validate() error {
	if c.EventID == "" || c.OrderReference == "" || c.Customer.ID == "" {
		return ErrInvalidConfirmation
	}
	return nil
}

// Notification 是推送给客户的一条消息
type Notification struct {
	EventID        string `json:"eventId"`
	CustomerID     string `json:"customerId"`
	Email          string `json:"email"`
	OrderReference string `json:"orderReference"`
	Message        string `json:"message"`
}
