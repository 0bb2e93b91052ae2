// internal/service/order/application/service.go
package application

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/pkg/metrics"
	"ecommerce/internal/service/order/application/saga"
	"ecommerce/internal/service/order/domain"
	"ecommerce/internal/service/order/domain/port"
)

type Options struct {
	CustomerTimeout     time.Duration
	InventoryTimeout    time.Duration
	PublishTimeout      time.Duration
	CompensationTimeout time.Duration
}

// OrderApplicationService 只关注业务流程编排。
// 客户校验、库存预留、本地持久化和事件发布不在同一个事务里，靠 Saga 补偿保持一致。
type OrderApplicationService struct {
	orderRepo domain.OrderRepository
	tracer    trace.Tracer
	options   func() Options // 每次下单时读取，支持配置热更新

	customerService  port.CustomerService
	inventoryService port.InventoryService
	publisher        port.ConfirmationPublisher

	inflight sync.WaitGroup // 尚未完成的确认事件发布
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, tracer trace.Tracer, options func() Options, customerService port.CustomerService, inventoryService port.InventoryService, publisher port.ConfirmationPublisher) *OrderApplicationService {
	return &OrderApplicationService{
		orderRepo: orderRepo, tracer: tracer, options: options,
		customerService: customerService, inventoryService: inventoryService, publisher: publisher,
	}
}

// PlaceOrder 执行一次完整的下单流程并返回订单 ID。确认事件在后台发布，不影响返回结果。
func (s *OrderApplicationService) PlaceOrder(ctx context.Context, req *CreateOrderRequest) (uint, error) {
	ctx, span := s.tracer.Start(ctx, "app.PlaceOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("order.reference", req.Reference),
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("purchase.lines", len(req.Products)),
	)

	if fields := req.Validate(); fields != nil {
		err := errors.Wrapf(domain.ErrInvalidOrder, "%v", fields)
		span.RecordError(err)
		metrics.OrdersFailed.WithLabelValues(failureReason(err)).Inc()
		return 0, err
	}

	orderCtx := &saga.OrderContext{
		Ctx:              ctx,
		Order:            domain.NewOrder(req.Reference, req.Amount, req.PaymentMethod, req.CustomerID),
		Lines:            req.Products,
		Tracer:           s.tracer,
		CustomerService:  s.customerService,
		InventoryService: s.inventoryService,
	}

	opts := s.options()
	if err := s.buildChain(opts).Handle(orderCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order processing failed in chain")
		logger.Ctx(ctx).Warn().Err(err).Str("reference", req.Reference).Msg("🛑 order placement failed")

		// 补偿不受请求取消影响
		compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.CompensationTimeout)
		orderCtx.TriggerCompensation(compCtx)
		cancel()

		metrics.OrdersFailed.WithLabelValues(failureReason(err)).Inc()
		return 0, err
	}

	metrics.OrdersPlaced.Inc()
	span.SetAttributes(attribute.Int64("order.id", int64(orderCtx.Order.ID)))
	logger.Ctx(ctx).Info().Uint("order_id", orderCtx.Order.ID).Str("reference", req.Reference).Msg("✅ order placed")
	return orderCtx.Order.ID, nil
}

func (s *OrderApplicationService) FindByID(ctx context.Context, id uint) (*OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindOrderByID")
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "no order found with id %d", id)
	}
	resp := toOrderResponse(*order)
	return &resp, nil
}

// FindAll 没有订单时返回空切片
func (s *OrderApplicationService) FindAll(ctx context.Context) ([]OrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindAllOrders")
	defer span.End()

	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out, nil
}

func (s *OrderApplicationService) FindLinesByOrderID(ctx context.Context, orderID uint) ([]OrderLineResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindOrderLines")
	defer span.End()

	lines, err := s.orderRepo.FindLinesByOrderID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(err, "no order found with id %d", orderID)
	}
	out := make([]OrderLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, toOrderLineResponse(l))
	}
	return out, nil
}

// Wait 等待后台发布完成，ctx 结束时提前返回
func (s *OrderApplicationService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *OrderApplicationService) buildChain(opts Options) saga.Handler {
	chain := saga.NewCustomerCheckHandler(opts.CustomerTimeout)
	chain.
		SetNext(saga.NewInventoryHandler(opts.InventoryTimeout)).
		SetNext(saga.NewCreateOrderHandler(s.orderRepo)).
		SetNext(new(saga.PaymentHandler)).
		SetNext(saga.NewNotificationHandler(s.publisher, opts.PublishTimeout, &s.inflight))
	return chain
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		return "invalid_request"
	case errors.Is(err, domain.ErrCustomerNotFound):
		return "customer_not_found"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrStockConflict):
		return "stock_conflict"
	case errors.Is(err, domain.ErrDuplicateReference):
		return "duplicate_reference"
	default:
		return "error"
	}
}
