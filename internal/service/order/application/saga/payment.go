package saga

import (
	"ecommerce/internal/pkg/logger"
)

// PaymentHandler 占位步骤：支付尚未接入，这里只记录日志，从不发起扣款。
type PaymentHandler struct {
	NextHandler
}

func (h *PaymentHandler) Handle(orderCtx *OrderContext) error {
	_, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Payment")
	defer span.End()

	logger.Ctx(orderCtx.Ctx).Info().
		Uint("order_id", orderCtx.Order.ID).
		Str("payment_method", string(orderCtx.Order.PaymentMethod)).
		Msg("payment deferred")
	span.AddEvent("Payment deferred")

	return h.executeNext(orderCtx)
}
