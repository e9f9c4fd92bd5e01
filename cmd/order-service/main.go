// cmd/order-service/main.go
package main

import (
	"context"
	"net/http"
	"os"

	"dtx/internal/pkg/bootstrap"
	"dtx/internal/pkg/config"
	"dtx/internal/pkg/database"
	"dtx/internal/pkg/idempotency"
	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/mq"
	"dtx/internal/pkg/outbox"
	"dtx/internal/service/order/application"
	"dtx/internal/service/order/domain"
	"dtx/internal/service/order/infrastructure"
	"dtx/internal/service/order/interfaces"
)

const serviceName = "order-service"

// main 是订单服务的组装根：建依赖、连线、交给 bootstrap 启动。
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
	if err := db.AutoMigrate(&domain.Order{}, &outbox.Record{}, &idempotency.ProcessedMessage{}); err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	txm := database.NewGormTxManager(db)
	outboxStore := outbox.NewGormStore(db)
	idemStore := idempotency.NewGormStore(db)

	// 订单服务向 order topic 发事件，消费库存服务的 inventory topic
	var producer mq.Producer
	var consumer mq.Consumer
	switch cfg.Bus.Driver {
	case "memory":
		bus := mq.NewMemoryBus(cfg.BusRetryDelay())
		producer = bus.Producer(cfg.Bus.OrderTopic)
		consumer = bus.Consumer(cfg.Bus.InventoryTopic)
	default:
		producer = mq.NewKafkaProducer(cfg.Bus.Brokers, cfg.Bus.OrderTopic)
		consumer = mq.NewKafkaConsumer(cfg.Bus.Brokers, cfg.Bus.InventoryTopic, cfg.Bus.GroupID, cfg.BusRetryDelay())
	}
	defer producer.Close()
	defer consumer.Close()

	publisher := outbox.NewPublisher(outboxStore, producer, cfg.Outbox.BatchSize, cfg.OutboxSweepInterval())
	svc := application.NewOrderService(infrastructure.NewGormRepository(db), outboxStore, txm, publisher)

	eventConsumer := interfaces.NewInventoryEventConsumer(idemStore, svc)
	consumer.Subscribe(eventConsumer.Tags(), eventConsumer.Handle)

	handler := interfaces.NewOrderHandler(svc)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      cfg.Service.Name,
		Config:           cfg,
		RegisterHandlers: func(mux *http.ServeMux) { handler.RegisterRoutes(mux) },
		Workers:          []func(ctx context.Context) error{publisher.Start, consumer.Start},
	})
}
