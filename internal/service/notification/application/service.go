// internal/service/notification/application/service.go
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/pkg/metrics"
	"ecommerce/internal/service/notification/domain"
)

type Outcome string

const (
	OutcomeDelivered    Outcome = "delivered"
	OutcomeNoSubscriber Outcome = "no_subscriber"
	OutcomeDuplicate    Outcome = "duplicate"
)

// NotificationService 消费下单确认事件。投递语义是至少一次，所以按 EventID 去重。
type NotificationService struct {
	store  domain.IdempotencyStore
	pusher domain.Pusher
	tracer trace.Tracer
}

func NewNotificationService(store domain.IdempotencyStore, pusher domain.Pusher, tracer trace.Tracer) *NotificationService {
	return &NotificationService{store: store, pusher: pusher, tracer: tracer}
}

func (s *NotificationService) HandleConfirmation(ctx context.Context, c *domain.OrderConfirmation) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "app.HandleConfirmation")
	defer span.End()

	if err := c.Validate(); err != nil {
		span.RecordError(err)
		return "", errors.Wrapf(err, "event %q", c.EventID)
	}
	span.SetAttributes(
		attribute.String("event.id", c.EventID),
		attribute.String("order.reference", c.OrderReference),
	)

	seen, err := s.store.Seen(ctx, c.EventID)
	if err != nil {
		// 去重存储不可用时宁可重复推送，也不丢消息
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", c.EventID).Msg("idempotency check failed, delivering anyway")
	} else if seen {
		metrics.Notifications.WithLabelValues(string(OutcomeDuplicate)).Inc()
		span.AddEvent("duplicate event skipped")
		logger.Ctx(ctx).Info().Str("event_id", c.EventID).Msg("duplicate confirmation skipped")
		return OutcomeDuplicate, nil
	}

	payload, err := json.Marshal(Render(c))
	if err != nil {
		_ = s.store.Forget(ctx, c.EventID)
		return "", errors.Wrap(err, "failed to marshal notification")
	}

	outcome := OutcomeNoSubscriber
	if n := s.pusher.Push(c.Customer.ID, payload); n > 0 {
		outcome = OutcomeDelivered
		span.SetAttributes(attribute.Int("notification.connections", n))
	}
	metrics.Notifications.WithLabelValues(string(outcome)).Inc()
	logger.Ctx(ctx).Info().
		Str("reference", c.OrderReference).
		Str("customer", c.Customer.ID).
		Str("outcome", string(outcome)).
		Msg("📨 order confirmation handled")
	return outcome, nil
}

// Render 生成发给客户的确认文案
func Render(c *domain.OrderConfirmation) domain.Notification {
	names := make([]string, 0, len(c.Products))
	for _, p := range c.Products {
		names = append(names, fmt.Sprintf("%s x %v", p.Name, p.Quantity))
	}
	msg := fmt.Sprintf("Dear %s %s, your order %s has been placed. Total %s paid by %s. Items: %s.",
		c.Customer.Firstname, c.Customer.Lastname, c.OrderReference,
		c.TotalAmount.StringFixed(2), c.PaymentMethod, strings.Join(names, ", "))
	return domain.Notification{
		EventID:        c.EventID,
		CustomerID:     c.Customer.ID,
		Email:          c.Customer.Email,
		OrderReference: c.OrderReference,
		Message:        msg,
	}
}
