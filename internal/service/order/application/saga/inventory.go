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

// InventoryHandler 负责库存预留步骤，并注册按订单号释放库存的补偿操作。
// 预留调用不随请求取消，只受 timeout 限制：库存服务一旦开始提交就会做完。
type InventoryHandler struct {
	NextHandler
	timeout time.Duration
}

func NewInventoryHandler(timeout time.Duration) *InventoryHandler {
	return &InventoryHandler{timeout: timeout}
}

func (h *InventoryHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.InventoryReserve")
	defer span.End()

	logger.Ctx(ctx).Debug().Msg("【Saga】=> 步骤 2: 预留库存...")
	reference := orderCtx.Order.Reference
	span.SetAttributes(attribute.Int("purchase.lines", len(orderCtx.Lines)), attribute.String("order.reference", reference))

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()

	purchased, err := orderCtx.InventoryService.PurchaseProducts(callCtx, reference, orderCtx.Lines)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Inventory reservation failed")
		// 库存服务明确拒绝时没有任何扣减；其余错误下结果未知，按订单号释放一次，没有预留时释放为空操作
		if !rejected(err) {
			logger.Ctx(ctx).Warn().Err(err).Str("reference", reference).Msg("reservation outcome unknown, scheduling release")
			h.addRelease(orderCtx)
		}
		// 错误原样返回，调用方根据错误类型决定响应
		return err
	}
	orderCtx.Purchased = purchased
	h.addRelease(orderCtx)

	span.AddEvent("All products reserved successfully")
	return h.executeNext(orderCtx)
}

func (h *InventoryHandler) addRelease(orderCtx *OrderContext) {
	reference := orderCtx.Order.Reference
	orderCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.ReleaseProducts")
		defer compSpan.End()

		// 补偿失败需要记录严重错误，并可能需要人工介入
		if err := orderCtx.InventoryService.ReleaseProducts(compCtx, reference); err != nil {
			compSpan.RecordError(err)
			compSpan.SetStatus(codes.Error, "Release failed")
			logger.Ctx(compCtx).Error().Err(err).Str("reference", reference).
				Interface("lines", orderCtx.Lines).Msg("CRITICAL: failed to release reserved stock")
			return
		}
		compSpan.AddEvent("Reserved stock released")
	})
}

// rejected 判断库存服务是否给出了明确的业务拒绝
func rejected(err error) bool {
	return errors.Is(err, domain.ErrProductNotFound) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrStockConflict) ||
		errors.Is(err, domain.ErrDuplicateReference)
}
