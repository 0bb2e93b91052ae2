// cmd/product-service/main.go
package main

import (
	"context"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"ecommerce/internal/pkg/bootstrap"
	"ecommerce/internal/pkg/database"
	"ecommerce/internal/pkg/zookeeper"
	"ecommerce/internal/service/product/application"
	"ecommerce/internal/service/product/domain/port"
	"ecommerce/internal/service/product/infrastructure"
	"ecommerce/internal/service/product/infrastructure/adapter"
	"ecommerce/internal/service/product/interfaces"
)

const serviceName = "product-service"

// main 函数是应用的"组装根" (Composition Root)
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

	db, err := database.Open(database.Options{
		DSN:             cfg.Infra.MySQL.DSN,
		MaxOpenConns:    cfg.Infra.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.Infra.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.Infra.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	repo := infrastructure.NewGormProductRepository(db)
	if cfg.Infra.MySQL.AutoMigrate {
		if err := repo.AutoMigrate(); err != nil {
			return nil, err
		}
	}

	// 默认只靠版本号做乐观并发控制，zookeeper 模式下额外对商品加分布式锁
	var locker port.ProductLocker
	var zkConn *zk.Conn
	if cfg.Inventory.LockMode == bootstrap.LockModeZookeeper {
		zkConn, err = zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return nil, err
		}
		locker = adapter.NewZookeeperProductLocker(zookeeper.NewMultiLock(zkConn, "product-", cfg.Infra.Zookeeper.LockTimeout))
	}

	engine := application.NewReservationEngine(repo, locker, application.ReservationOptions{
		MaxConflictRetries: cfg.Inventory.MaxConflictRetries,
		ConflictBackoff:    cfg.Inventory.ConflictBackoff,
	}, tracer)
	catalog := application.NewCatalogService(repo, tracer)

	interfaces.NewProductHandler(engine, catalog).RegisterRoutes(appCtx.Mux)
	log.Info().Str("lock_mode", cfg.Inventory.LockMode).Msg("✅ product routes registered")

	return func(ctx context.Context) {
		if zkConn != nil {
			zkConn.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}
