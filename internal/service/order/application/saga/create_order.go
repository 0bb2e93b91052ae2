package saga

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/service/order/domain"
)

// CreateOrderHandler 负责在一个本地事务中持久化订单与明细。
type CreateOrderHandler struct {
	NextHandler
	repo domain.OrderRepository
}

func NewCreateOrderHandler(repo domain.OrderRepository) *CreateOrderHandler {
	return &CreateOrderHandler{repo: repo}
}

func (h *CreateOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CreateOrder")
	defer span.End()

	logger.Ctx(ctx).Debug().Msg("【Saga】=> 步骤 3: 保存订单与明细...")

	if err := h.repo.CreateWithLines(ctx, orderCtx.Order, orderCtx.Lines); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to persist order")
		if errors.Is(err, domain.ErrDuplicateReference) {
			return errors.Wrapf(err, "reference %s", orderCtx.Order.Reference)
		}
		return errors.Wrap(err, "failed to save order")
	}

	span.SetAttributes(attribute.Int64("order.id", int64(orderCtx.Order.ID)))
	span.AddEvent("Order and order lines saved to DB.")
	return h.executeNext(orderCtx)
}
