// cmd/inventory-service/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/redis/go-redis/v9"

	"dtx/internal/pkg/bootstrap"
	"dtx/internal/pkg/config"
	"dtx/internal/pkg/database"
	"dtx/internal/pkg/dlock"
	"dtx/internal/pkg/idempotency"
	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/mq"
	"dtx/internal/pkg/outbox"
	"dtx/internal/service/inventory/application"
	"dtx/internal/service/inventory/domain"
	"dtx/internal/service/inventory/infrastructure"
	"dtx/internal/service/inventory/interfaces"
)

const serviceName = "inventory-service"

// main 是库存服务的组装根：建依赖、连线、交给 bootstrap 启动。
func main() {
	logger.Init(serviceName)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Service.Name == "" {
		cfg.Service.Name = serviceName
	}
	if cfg.Bus.GroupID == "" {
		cfg.Bus.GroupID = serviceName
	}

	db, err := database.Open(cfg.MySQL.DSN)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to open mysql")
	}
	if err := db.AutoMigrate(&domain.Item{}, &outbox.Record{}, &idempotency.ProcessedMessage{}); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	txm := database.NewGormTxManager(db)
	outboxStore := outbox.NewGormStore(db)
	idemStore := idempotency.NewGormStore(db)

	locker := buildLocker(cfg)

	// 库存服务向 inventory topic 发事件，消费订单服务的 order topic
	var producer mq.Producer
	var consumer mq.Consumer
	switch cfg.Bus.Driver {
	case "memory":
		bus := mq.NewMemoryBus(cfg.BusRetryDelay())
		producer = bus.Producer(cfg.Bus.InventoryTopic)
		consumer = bus.Consumer(cfg.Bus.OrderTopic)
	default:
		producer = mq.NewKafkaProducer(cfg.Bus.Brokers, cfg.Bus.InventoryTopic)
		consumer = mq.NewKafkaConsumer(cfg.Bus.Brokers, cfg.Bus.OrderTopic, cfg.Bus.GroupID, cfg.BusRetryDelay())
	}
	defer producer.Close()
	defer consumer.Close()

	publisher := outbox.NewPublisher(outboxStore, producer, cfg.Outbox.BatchSize, cfg.OutboxSweepInterval())
	svc := application.NewInventoryService(infrastructure.NewGormRepository(db), locker, cfg.LockWaitTimeout(), cfg.LockHoldTimeout())

	eventConsumer := interfaces.NewOrderEventConsumer(idemStore, svc, outboxStore, txm, publisher)
	consumer.Subscribe(eventConsumer.Tags(), eventConsumer.Handle)

	handler := interfaces.NewInventoryHandler(svc)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      cfg.Service.Name,
		Config:           cfg,
		RegisterHandlers: func(mux *http.ServeMux) { handler.RegisterRoutes(mux) },
		Workers:          []func(ctx context.Context) error{publisher.Start, consumer.Start},
	})
}

// buildLocker 按配置选择分布式锁实现，连不上属于启动期致命错误。
func buildLocker(cfg *config.Config) dlock.Locker {
	switch cfg.Lock.Driver {
	case "zookeeper":
		conn, _, err := zk.Connect(cfg.Lock.ZKServers, 5*time.Second)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to connect zookeeper")
		}
		return dlock.NewZKLocker(conn)
	case "memory":
		return dlock.NewMemoryLocker()
	default:
		client := redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
		return dlock.NewRedisLocker(client)
	}
}
