package saga

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/service/order/domain"
)

// CustomerCheckHandler 负责客户存在性校验。
// 超时、调用失败与客户不存在一样处理：立即终止，不触碰库存。
type CustomerCheckHandler struct {
	NextHandler
	timeout time.Duration
}

func NewCustomerCheckHandler(timeout time.Duration) *CustomerCheckHandler {
	return &CustomerCheckHandler{timeout: timeout}
}

func (h *CustomerCheckHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CustomerCheck")
	defer span.End()

	customerID := orderCtx.Order.CustomerID
	span.SetAttributes(attribute.String("customer.id", customerID))
	logger.Ctx(ctx).Debug().Msg("【Saga】=> 步骤 1: 校验客户...")

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	customer, err := orderCtx.CustomerService.FindByID(checkCtx, customerID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("customer", customerID).Msg("customer lookup failed, treating as not found")
	}
	if err != nil || customer == nil {
		notFound := errors.Wrapf(domain.ErrCustomerNotFound, "cannot create order: no customer exists with id %s", customerID)
		span.RecordError(notFound)
		span.SetStatus(codes.Error, "Customer check failed")
		return notFound
	}

	orderCtx.Customer = customer
	span.AddEvent("Customer verified")
	return h.executeNext(orderCtx)
}
