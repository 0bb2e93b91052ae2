package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构，来源依次为：默认值 -> YAML 文件 -> 环境变量 -> Nacos 配置中心。
type Config struct {
	App          AppConfig          `yaml:"app"`
	Infra        InfraConfig        `yaml:"infra"`
	Order        OrderConfig        `yaml:"order"`
	Inventory    InventoryConfig    `yaml:"inventory"`
	Notification NotificationConfig `yaml:"notification"`
}

type AppConfig struct {
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	LogPretty       bool          `yaml:"log_pretty"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type InfraConfig struct {
	Jaeger    JaegerConfig      `yaml:"jaeger"`
	MySQL     MySQLConfig       `yaml:"mysql"`
	Kafka     KafkaConfig       `yaml:"kafka"`
	Redis     RedisConfig       `yaml:"redis"`
	Nacos     NacosConfig       `yaml:"nacos"`
	Zookeeper ZookeeperConfig   `yaml:"zookeeper"`
	Services  map[string]string `yaml:"services"` // 未启用 Nacos 时的静态服务地址
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	ConfirmationTopic string   `yaml:"confirmation_topic"`
	ConsumerGroup     string   `yaml:"consumer_group"`
	MaxAttempts       int      `yaml:"max_attempts"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

type NacosConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServerAddrs  string `yaml:"server_addrs"`
	Namespace    string `yaml:"namespace"`
	Group        string `yaml:"group"`
	ConfigDataID string `yaml:"config_data_id"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
}

type OrderConfig struct {
	CustomerService     string        `yaml:"customer_service"`
	ProductService      string        `yaml:"product_service"`
	CustomerTimeout     time.Duration `yaml:"customer_timeout"`
	InventoryTimeout    time.Duration `yaml:"inventory_timeout"`
	CompensationTimeout time.Duration `yaml:"compensation_timeout"`
	PublishTimeout      time.Duration `yaml:"publish_timeout"`
	Policies            []PolicyRule  `yaml:"policies"`
}

// PolicyRule 是一条作用于下单请求的 CEL 校验规则，Expression 求值为 false 时拒绝请求。
type PolicyRule struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
	Field      string `yaml:"field"`
	Message    string `yaml:"message"`
}

const (
	LockModeOptimistic = "optimistic"
	LockModeZookeeper  = "zookeeper"
)

type InventoryConfig struct {
	LockMode           string        `yaml:"lock_mode"`
	MaxConflictRetries int           `yaml:"max_conflict_retries"`
	ConflictBackoff    time.Duration `yaml:"conflict_backoff"`
}

type NotificationConfig struct {
	WebsocketPath string `yaml:"websocket_path"`
}

// DefaultConfig 返回本地开发环境可直接使用的默认配置。
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:             "dev",
			LogLevel:        "info",
			HTTPPort:        8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Infra: InfraConfig{
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces", SampleRatio: 1},
			MySQL: MySQLConfig{
				DSN:             "root:root@tcp(localhost:3306)/ecommerce?parseTime=true&loc=UTC",
				MaxOpenConns:    20,
				MaxIdleConns:    10,
				ConnMaxLifetime: 30 * time.Minute,
				AutoMigrate:     true,
			},
			Kafka: KafkaConfig{
				Brokers:           []string{"localhost:9092"},
				ConfirmationTopic: "order.confirmations",
				ConsumerGroup:     "notification-group",
				MaxAttempts:       10,
			},
			Redis:     RedisConfig{Addr: "localhost:6379", IdempotencyTTL: 24 * time.Hour},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{Servers: []string{"localhost:2181"}, SessionTimeout: 10 * time.Second, LockTimeout: 5 * time.Second},
			Services: map[string]string{
				"customer-service": "localhost:8090",
				"product-service":  "localhost:8050",
			},
		},
		Order: OrderConfig{
			CustomerService:     "customer-service",
			ProductService:      "product-service",
			CustomerTimeout:     2 * time.Second,
			InventoryTimeout:    10 * time.Second,
			CompensationTimeout: 10 * time.Second,
			PublishTimeout:      5 * time.Second,
		},
		Inventory: InventoryConfig{
			LockMode:           LockModeOptimistic,
			MaxConflictRetries: 3,
			ConflictBackoff:    20 * time.Millisecond,
		},
		Notification: NotificationConfig{WebsocketPath: "/ws"},
	}
}

// LoadConfig 按 默认值 -> YAML -> 环境变量 的顺序生成配置。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查无法继续启动的配置错误。
func (c *Config) Validate() error {
	switch c.Inventory.LockMode {
	case LockModeOptimistic, LockModeZookeeper:
	default:
		return fmt.Errorf("inventory.lock_mode must be %q or %q, got %q", LockModeOptimistic, LockModeZookeeper, c.Inventory.LockMode)
	}
	if c.Inventory.MaxConflictRetries < 0 {
		return fmt.Errorf("inventory.max_conflict_retries must be >= 0")
	}
	if c.App.HTTPPort <= 0 {
		return fmt.Errorf("app.http_port must be positive")
	}
	if c.Order.CustomerTimeout <= 0 || c.Order.InventoryTimeout <= 0 || c.Order.PublishTimeout <= 0 || c.Order.CompensationTimeout <= 0 {
		return fmt.Errorf("order timeouts (customer, inventory, publish, compensation) must be positive")
	}
	return nil
}

// 环境变量优先于配置文件
func applyEnv(cfg *Config) {
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.HTTPPort = getEnvInt("HTTP_PORT", cfg.App.HTTPPort)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.Infra.Kafka.Brokers = splitCSV(v)
	}
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	if v := getEnv("NACOS_ENABLED", ""); v != "" {
		cfg.Infra.Nacos.Enabled, _ = strconv.ParseBool(v)
	}
	if v := getEnv("ZOOKEEPER_SERVERS", ""); v != "" {
		cfg.Infra.Zookeeper.Servers = splitCSV(v)
	}
	cfg.Inventory.LockMode = getEnv("INVENTORY_LOCK_MODE", cfg.Inventory.LockMode)
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置快照，未初始化时返回默认配置。
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig()
}

// SetCurrentConfig 原子地替换当前配置。
func SetCurrentConfig(cfg *Config) {
	currentConfig.Store(cfg)
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
