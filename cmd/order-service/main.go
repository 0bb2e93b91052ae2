// cmd/order-service/main.go
package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"ecommerce/internal/pkg/bootstrap"
	"ecommerce/internal/pkg/database"
	"ecommerce/internal/pkg/httpclient"
	"ecommerce/internal/pkg/mq"
	"ecommerce/internal/pkg/validation"
	"ecommerce/internal/service/order/application"
	"ecommerce/internal/service/order/infrastructure"
	"ecommerce/internal/service/order/infrastructure/adapter"
	"ecommerce/internal/service/order/interfaces"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	bootstrap.Init(serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		RegisterHandlers: register,
	})
}

func register(appCtx bootstrap.AppCtx) (func(ctx context.Context), error) {
	cfg := appCtx.Config
	tracer := otel.Tracer(serviceName)

	// 1. 基础设施
	db, err := database.Open(database.Options{
		DSN:             cfg.Infra.MySQL.DSN,
		MaxOpenConns:    cfg.Infra.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.Infra.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.Infra.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	orderRepo := infrastructure.NewGormOrderRepository(db)
	if cfg.Infra.MySQL.AutoMigrate {
		if err := orderRepo.AutoMigrate(); err != nil {
			return nil, err
		}
	}

	writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.ConfirmationTopic)
	writer.MaxAttempts = cfg.Infra.Kafka.MaxAttempts

	// 2. 出站适配器
	client := httpclient.NewClient(tracer, appCtx.Resolver())
	customerAdapter := adapter.NewCustomerHTTPAdapter(client, cfg.Order.CustomerService)
	inventoryAdapter := adapter.NewInventoryHTTPAdapter(client, cfg.Order.ProductService)
	publisher := adapter.NewConfirmationKafkaAdapter(writer)

	// 3. 应用服务，超时参数每次下单时从当前配置读取
	appService := application.NewOrderApplicationService(orderRepo, tracer, func() application.Options {
		current := bootstrap.GetCurrentConfig().Order
		return application.Options{
			CustomerTimeout:     current.CustomerTimeout,
			InventoryTimeout:    current.InventoryTimeout,
			PublishTimeout:      current.PublishTimeout,
			CompensationTimeout: current.CompensationTimeout,
		}
	}, customerAdapter, inventoryAdapter, publisher)

	// 4. 驱动适配器
	rules := make([]validation.Rule, 0, len(cfg.Order.Policies))
	for _, p := range cfg.Order.Policies {
		rules = append(rules, validation.Rule{Name: p.Name, Expression: p.Expression, Field: p.Field, Message: p.Message})
	}
	policies, err := interfaces.NewOrderPolicies(rules)
	if err != nil {
		return nil, err
	}
	interfaces.NewOrderHandler(appService, policies).RegisterRoutes(appCtx.Mux)
	log.Info().Int("policies", len(rules)).Msg("✅ order routes registered")

	return func(ctx context.Context) {
		// 先等后台发布完成再关闭 writer
		if err := appService.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("pending confirmations not flushed before shutdown")
		}
		if err := writer.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka writer")
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}
