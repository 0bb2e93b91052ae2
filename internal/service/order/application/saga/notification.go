package saga

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/pkg/metrics"
	"ecommerce/internal/service/order/domain"
	"ecommerce/internal/service/order/domain/port"
)

// NotificationHandler 是 Saga 流程的最后一步，在后台发布下单确认事件。
// 发布失败只记录日志和指标，不影响下单结果。
type NotificationHandler struct {
	NextHandler
	publisher port.ConfirmationPublisher
	timeout   time.Duration
	inflight  *sync.WaitGroup
}

func NewNotificationHandler(publisher port.ConfirmationPublisher, timeout time.Duration, inflight *sync.WaitGroup) *NotificationHandler {
	return &NotificationHandler{publisher: publisher, timeout: timeout, inflight: inflight}
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notification")
	defer span.End()

	confirmation := &domain.OrderConfirmation{
		EventID:        uuid.New().String(),
		OrderReference: orderCtx.Order.Reference,
		TotalAmount:    orderCtx.Order.TotalAmount,
		PaymentMethod:  orderCtx.Order.PaymentMethod,
		Customer:       *orderCtx.Customer,
		Products:       orderCtx.Purchased,
	}
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("event.id", confirmation.EventID),
	)

	// 只保留链路关系，不继承请求的取消与超时
	publishCtx := trace.ContextWithRemoteSpanContext(context.Background(), trace.SpanContextFromContext(ctx))

	tracer := orderCtx.Tracer
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		h.publish(publishCtx, tracer, confirmation)
	}()

	span.AddEvent("Confirmation dispatched")
	return h.executeNext(orderCtx)
}

func (h *NotificationHandler) publish(ctx context.Context, tracer trace.Tracer, confirmation *domain.OrderConfirmation) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "saga.PublishConfirmation", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	if err := h.publisher.Publish(ctx, confirmation); err != nil {
		metrics.ConfirmationsPublished.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Publish failed")
		// 没有 outbox，完整事件写进日志，可以据此手工重发；消费端按 event_id 去重
		logger.Ctx(ctx).Error().Err(err).
			Str("reference", confirmation.OrderReference).
			Str("event_id", confirmation.EventID).
			Interface("event", confirmation).
			Msg("WARN: failed to publish order confirmation")
		return
	}
	metrics.ConfirmationsPublished.WithLabelValues("published").Inc()
	logger.Ctx(ctx).Info().Str("reference", confirmation.OrderReference).Msg("✅ order confirmation published")
}
