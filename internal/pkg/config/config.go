// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 汇总了一个服务进程需要的全部配置。
// 先读 YAML 文件（CONFIG_PATH 指定），再用环境变量覆盖关键地址，
// 所有字段都有可独立运行的默认值。
type Config struct {
	Service struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	} `yaml:"service"`

	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`

	Bus struct {
		// Driver: kafka | memory
		Driver         string   `yaml:"driver"`
		Brokers        []string `yaml:"brokers"`
		GroupID        string   `yaml:"group_id"`
		OrderTopic     string   `yaml:"order_topic"`
		InventoryTopic string   `yaml:"inventory_topic"`
		// 处理失败后等待重投的间隔
		RetryDelayMs int `yaml:"retry_delay_ms"`
	} `yaml:"bus"`

	Lock struct {
		// Driver: redis | zookeeper | memory
		Driver        string   `yaml:"driver"`
		RedisAddr     string   `yaml:"redis_addr"`
		ZKServers     []string `yaml:"zk_servers"`
		WaitTimeoutMs int      `yaml:"wait_timeout_ms"`
		HoldTimeoutMs int      `yaml:"hold_timeout_ms"`
	} `yaml:"lock"`

	Outbox struct {
		SweepIntervalMs int `yaml:"sweep_interval_ms"`
		BatchSize       int `yaml:"batch_size"`
	} `yaml:"outbox"`

	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`

	Nacos struct {
		ServerAddrs string `yaml:"server_addrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
}

// Load 读取并合并配置。path 为空时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Service.Port = 8080
	cfg.MySQL.DSN = "root:root@tcp(localhost:3306)/dtx?parseTime=true&charset=utf8mb4"
	cfg.Bus.Driver = "kafka"
	cfg.Bus.Brokers = []string{"localhost:9092"}
	cfg.Bus.OrderTopic = "order-events"
	cfg.Bus.InventoryTopic = "inventory-events"
	cfg.Bus.RetryDelayMs = 1000
	cfg.Lock.Driver = "redis"
	cfg.Lock.RedisAddr = "localhost:6379"
	cfg.Lock.ZKServers = []string{"localhost:2181"}
	cfg.Lock.WaitTimeoutMs = 2000
	cfg.Lock.HoldTimeoutMs = 10000
	cfg.Outbox.SweepIntervalMs = 500
	cfg.Outbox.BatchSize = 50
	cfg.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Nacos.Group = "DEFAULT_GROUP"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	cfg.MySQL.DSN = getEnv("MYSQL_DSN", cfg.MySQL.DSN)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Bus.Brokers = strings.Split(v, ",")
	}
	cfg.Lock.RedisAddr = getEnv("REDIS_ADDR", cfg.Lock.RedisAddr)
	if v := os.Getenv("ZK_SERVERS"); v != "" {
		cfg.Lock.ZKServers = strings.Split(v, ",")
	}
	cfg.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Jaeger.Endpoint)
	cfg.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Nacos.ServerAddrs)
	cfg.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Nacos.Namespace)
	cfg.Nacos.Group = getEnv("NACOS_GROUP", cfg.Nacos.Group)
}

// BusRetryDelay 返回消费失败后的重投间隔
func (c *Config) BusRetryDelay() time.Duration {
	return time.Duration(c.Bus.RetryDelayMs) * time.Millisecond
}

// LockWaitTimeout 返回抢锁的排队上限
func (c *Config) LockWaitTimeout() time.Duration {
	return time.Duration(c.Lock.WaitTimeoutMs) * time.Millisecond
}

// LockHoldTimeout 返回锁的租约时长，持有者崩溃后到期自动释放
func (c *Config) LockHoldTimeout() time.Duration {
	return time.Duration(c.Lock.HoldTimeoutMs) * time.Millisecond
}

// OutboxSweepInterval 返回 outbox 定时兜底扫描的间隔
func (c *Config) OutboxSweepInterval() time.Duration {
	return time.Duration(c.Outbox.SweepIntervalMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
