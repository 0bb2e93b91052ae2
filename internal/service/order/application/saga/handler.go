package saga

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/service/order/domain"
	"ecommerce/internal/service/order/domain/port"
)

// OrderContext 在 Saga 流程中传递上下文数据。
// 前面的步骤把结果写回这里，供后面的步骤使用。
type OrderContext struct {
	Ctx    context.Context
	Order  *domain.Order         // 尚未持久化时 ID 为 0
	Lines  []domain.PurchaseLine // 请求原始顺序
	Tracer trace.Tracer

	// 依赖出站端口 (Interfaces)
	CustomerService  port.CustomerService
	InventoryService port.InventoryService

	// 各步骤的产出
	Customer  *domain.Customer
	Purchased []domain.PurchasedProduct

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
}

// AddCompensation 注册补偿操作，后注册的先执行
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 依次执行所有已注册的补偿操作，执行后清空
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	if len(c.compensations) == 0 {
		return
	}
	logger.Ctx(ctx).Warn().Str("reference", c.Order.Reference).Msgf("Executing %d compensation functions.", len(c.compensations))
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}
