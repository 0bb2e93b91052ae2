package infrastructure

import "ecommerce/internal/service/order/domain"

func ToDomainOrder(model *OrderModel) domain.Order {
	return domain.Order{
		ID:            model.ID,
		Reference:     model.Reference,
		TotalAmount:   model.TotalAmount,
		PaymentMethod: domain.PaymentMethod(model.PaymentMethod),
		CustomerID:    model.CustomerID,
		CreatedAt:     model.CreatedAt,
	}
}

// FromDomainOrder 创建用于插入的数据库模型，明细按请求顺序排列
func FromDomainOrder(o *domain.Order, lines []domain.PurchaseLine) *OrderModel {
	model := &OrderModel{
		Reference:     o.Reference,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: string(o.PaymentMethod),
		CustomerID:    o.CustomerID,
		CreatedAt:     o.CreatedAt,
		Lines:         make([]OrderLineModel, 0, len(lines)),
	}
	for _, l := range lines {
		model.Lines = append(model.Lines, OrderLineModel{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return model
}

func ToDomainOrderLine(model *OrderLineModel) domain.OrderLine {
	return domain.OrderLine{ID: model.ID, OrderID: model.OrderID, ProductID: model.ProductID, Quantity: model.Quantity}
}
