package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/pkg/metrics"
	"ecommerce/internal/pkg/mq"
	"ecommerce/internal/service/notification/application"
	"ecommerce/internal/service/notification/domain"
)

// MessageReader 是 *kafka.Reader 中消费者用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConfirmationHandler interface {
	HandleConfirmation(ctx context.Context, c *domain.OrderConfirmation) (application.Outcome, error)
}

// ConfirmationConsumer 是一个驱动适配器，它监听Kafka消息并驱动应用服务。
type ConfirmationConsumer struct {
	reader  MessageReader
	handler ConfirmationHandler
	tracer  trace.Tracer
	backoff time.Duration
}

func NewConfirmationConsumer(reader MessageReader, handler ConfirmationHandler, tracer trace.Tracer) *ConfirmationConsumer {
	return &ConfirmationConsumer{reader: reader, handler: handler, tracer: tracer, backoff: time.Second}
}

// Run 持续消费直到 ctx 结束。每条消息处理完都会提交 offset，无法解析的消息也一样
func (a *ConfirmationConsumer) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Msg("✅ confirmation consumer started")
	for {
		// 使用FetchMessage而不是ReadMessage，以便手动提交
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Msg("🛑 confirmation consumer shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not read message, retrying")
			select {
			case <-time.After(a.backoff): // 避免快速失败循环
			case <-ctx.Done():
				return nil
			}
			continue
		}

		a.processMessage(mq.ExtractTraceContext(ctx, msg.Headers), msg)

		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to commit messages")
		}
	}
}

func (a *ConfirmationConsumer) Close() error {
	return a.reader.Close()
}

// processMessage 反序列化消息并调用应用服务
func (a *ConfirmationConsumer) processMessage(ctx context.Context, msg kafka.Message) {
	ctx, span := a.tracer.Start(ctx, "notification-service.ProcessConfirmation",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		),
	)
	defer span.End()

	var event domain.OrderConfirmation
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		metrics.Notifications.WithLabelValues("undecodable").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "undecodable message")
		logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to unmarshal confirmation, skipping")
		return
	}

	if _, err := a.handler.HandleConfirmation(ctx, &event); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Ctx(ctx).Error().Err(err).Str("reference", event.OrderReference).Msg("failed to handle confirmation")
	}
}
