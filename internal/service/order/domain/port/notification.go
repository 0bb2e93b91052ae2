package port

import (
	"context"

	"ecommerce/internal/service/order/domain"
)

// ConfirmationPublisher 是下单确认事件的出站端口，投递语义为至少一次。
type ConfirmationPublisher interface {
	Publish(ctx context.Context, confirmation *domain.OrderConfirmation) error
}
