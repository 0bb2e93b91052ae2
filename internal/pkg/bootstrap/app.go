// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"ecommerce/internal/pkg/httpclient"
	"ecommerce/internal/pkg/logger"
	"ecommerce/internal/pkg/metrics"
	"ecommerce/internal/pkg/nacos"
	"ecommerce/internal/pkg/tracing"
)

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client // 未启用 Nacos 时为 nil
	Config *Config
}

// Resolver 返回服务发现实现：启用 Nacos 时走注册中心，否则使用静态地址表。
func (a AppCtx) Resolver() httpclient.Resolver {
	if a.Nacos != nil {
		return a.Nacos
	}
	return httpclient.StaticResolver(a.Config.Infra.Services)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	// RegisterHandlers 注册服务自己的 HTTP 路由并完成依赖组装，返回的函数在关停时调用（可以为 nil）
	RegisterHandlers func(appCtx AppCtx) (cleanup func(ctx context.Context), err error)
}

// Init 加载配置并初始化日志，必须在 StartService 之前调用。
func Init(serviceName string) *Config {
	cfg, err := LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	SetCurrentConfig(cfg)
	logger.Init(serviceName, cfg.App.LogLevel, cfg.App.LogPretty)
	return cfg
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Enabled {
		namingClient, ip = connectNacos(info.ServiceName, cfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", metrics.Handler())

	var cleanup func(ctx context.Context)
	if info.RegisterHandlers != nil {
		cleanup, err = info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient, Config: cfg})
		if err != nil {
			log.Fatal().Err(err).Msgf("failed to assemble %s", info.ServiceName)
		}
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.App.HTTPPort), Handler: mux}
	go func() {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, cfg.App.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msgf("Shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	// 关停顺序：先从注册中心摘除，再停止接收请求，然后释放业务资源，最后刷新 trace
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, cfg.App.HTTPPort); err != nil {
			log.Error().Err(err).Msg("Error deregistering from Nacos")
		}
		namingClient.Close()
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	} else {
		log.Info().Msg("HTTP server shut down.")
	}

	if cleanup != nil {
		cleanup(ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	} else {
		log.Info().Msg("Tracer provider shut down.")
	}

	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

func connectNacos(serviceName string, cfg *Config) (*nacos.Client, string) {
	serverConfigs, err := nacos.ParseServerConfigs(cfg.Infra.Nacos.ServerAddrs)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid Nacos server address format")
	}
	clientConfig := nacos.NewClientConfig(cfg.Infra.Nacos.Namespace)

	client, err := nacos.NewNacosClientWithConfigs(serverConfigs, &clientConfig, cfg.Infra.Nacos.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize nacos client")
	}

	if cfg.Infra.Nacos.ConfigDataID != "" {
		watchRemoteConfig(client, cfg.Infra.Nacos.ConfigDataID)
	}

	ip, err := getOutboundIP()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get outbound IP address")
	}
	if err := client.RegisterServiceInstance(serviceName, ip, GetCurrentConfig().App.HTTPPort); err != nil {
		log.Fatal().Err(err).Msg("failed to register service with nacos")
	}
	return client, ip
}

// watchRemoteConfig 从配置中心加载一份 YAML 覆盖到当前配置之上，并在变更时热更新。
// 只有在运行期读取 GetCurrentConfig() 的参数会随之生效，例如下单流程的各项超时。
func watchRemoteConfig(client *nacos.Client, dataID string) {
	apply := func(content string) {
		if content == "" {
			return
		}
		next := *GetCurrentConfig()
		next.Infra.Services = make(map[string]string, len(next.Infra.Services))
		for k, v := range GetCurrentConfig().Infra.Services {
			next.Infra.Services[k] = v
		}
		if err := yaml.Unmarshal([]byte(content), &next); err != nil {
			log.Error().Err(err).Str("data_id", dataID).Msg("ignoring invalid remote config")
			return
		}
		if err := next.Validate(); err != nil {
			log.Error().Err(err).Str("data_id", dataID).Msg("ignoring invalid remote config")
			return
		}
		SetCurrentConfig(&next)
		log.Info().Str("data_id", dataID).Msg("remote config applied")
	}

	content, err := client.GetConfig(dataID)
	if err != nil {
		log.Warn().Err(err).Str("data_id", dataID).Msg("could not load remote config, keeping local config")
	} else {
		apply(content)
	}
	if err := client.ListenConfig(dataID, apply); err != nil {
		log.Warn().Err(err).Str("data_id", dataID).Msg("could not listen for remote config changes")
	}
}

func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
