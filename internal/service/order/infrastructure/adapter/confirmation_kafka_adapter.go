package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"ecommerce/internal/pkg/mq"
	"ecommerce/internal/service/order/domain"
)

// ConfirmationKafkaAdapter 实现了 port.ConfirmationPublisher 接口。
type ConfirmationKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewConfirmationKafkaAdapter(writer mq.MessageWriter) *ConfirmationKafkaAdapter {
	return &ConfirmationKafkaAdapter{writer: writer}
}

// Publish 以订单 reference 作为消息 key，同一订单的事件落在同一分区。
func (a *ConfirmationKafkaAdapter) Publish(ctx context.Context, confirmation *domain.OrderConfirmation) error {
	eventBytes, err := json.Marshal(confirmation)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order confirmation")
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, []byte(confirmation.OrderReference), eventBytes)
}
