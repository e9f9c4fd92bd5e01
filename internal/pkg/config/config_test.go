// internal/pkg/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "kafka", cfg.Bus.Driver)
	assert.Equal(t, "order-events", cfg.Bus.OrderTopic)
	assert.Equal(t, "inventory-events", cfg.Bus.InventoryTopic)
	assert.Equal(t, "redis", cfg.Lock.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxSweepInterval())
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.LockWaitTimeout())
	assert.Equal(t, 10*time.Second, cfg.LockHoldTimeout())
	assert.Equal(t, time.Second, cfg.BusRetryDelay())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  name: inventory-service
  port: 9090
bus:
  driver: memory
  retry_delay_ms: 100
lock:
  driver: zookeeper
  zk_servers:
    - zk1:2181
    - zk2:2181
outbox:
  sweep_interval_ms: 200
  batch_size: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "inventory-service", cfg.Service.Name)
	assert.Equal(t, 9090, cfg.Service.Port)
	assert.Equal(t, "memory", cfg.Bus.Driver)
	assert.Equal(t, 100*time.Millisecond, cfg.BusRetryDelay())
	assert.Equal(t, "zookeeper", cfg.Lock.Driver)
	assert.Equal(t, []string{"zk1:2181", "zk2:2181"}, cfg.Lock.ZKServers)
	assert.Equal(t, 200*time.Millisecond, cfg.OutboxSweepInterval())
	assert.Equal(t, 10, cfg.Outbox.BatchSize)

	// 没写的字段保持默认
	assert.Equal(t, "order-events", cfg.Bus.OrderTopic)
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(db:3306)/dtx")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "user:pass@tcp(db:3306)/dtx", cfg.MySQL.DSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Bus.Brokers)
	assert.Equal(t, "redis:6379", cfg.Lock.RedisAddr)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
