package port

import (
	"context"

	"ecommerce/internal/service/order/domain"
)

// CustomerService 是客户服务的出站端口。
type CustomerService interface {
	// FindByID 查询客户，客户不存在时返回 (nil, nil)。
	FindByID(ctx context.Context, customerID string) (*domain.Customer, error)
}
