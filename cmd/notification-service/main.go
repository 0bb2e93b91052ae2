// cmd/notification-service/main.go
package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"ecommerce/internal/pkg/bootstrap"
	"ecommerce/internal/pkg/mq"
	"ecommerce/internal/pkg/redis"
	"ecommerce/internal/service/notification/application"
	"ecommerce/internal/service/notification/interfaces"
)

const serviceName = "notification-service"

func main() {
	bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		RegisterHandlers: register,
	})
}

// register 启动 Kafka 消费者与 WebSocket Hub，两者由同一个 errgroup 管理生命周期
func register(appCtx bootstrap.AppCtx) (func(ctx context.Context), error) {
	cfg := appCtx.Config
	tracer := otel.Tracer(serviceName)

	rdb, err := redis.NewClient(context.Background(), cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		return nil, err
	}
	store := redis.NewIdempotencyStore(rdb, "order-confirmation", cfg.Infra.Redis.IdempotencyTTL)

	hub := interfaces.NewHub()
	appCtx.Mux.HandleFunc(cfg.Notification.WebsocketPath, hub.ServeWs)

	svc := application.NewNotificationService(store, hub, tracer)
	reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.ConfirmationTopic, cfg.Infra.Kafka.ConsumerGroup)
	consumer := interfaces.NewConfirmationConsumer(reader, svc, tracer)

	runCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	log.Info().Str("topic", cfg.Infra.Kafka.ConfirmationTopic).Msg("✅ notification consumer running")

	return func(ctx context.Context) {
		cancel()
		if err := g.Wait(); err != nil {
			log.Error().Err(err).Msg("notification workers stopped with error")
		}
		if err := consumer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka reader")
		}
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}, nil
}
