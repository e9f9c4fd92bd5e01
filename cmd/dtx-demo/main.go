// cmd/dtx-demo/main.go
//
// 单进程演示：订单服务和库存服务跑在同一个进程里，
// 总线、分布式锁、存储全部使用 memory 实现，不需要任何外部依赖。
// 启动后自动铺底库存并下两笔订单，随后继续对外提供两个服务的 HTTP 接口。
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"dtx/internal/pkg/bootstrap"
	"dtx/internal/pkg/config"
	"dtx/internal/pkg/database"
	"dtx/internal/pkg/dlock"
	"dtx/internal/pkg/idempotency"
	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/mq"
	"dtx/internal/pkg/outbox"
	invapp "dtx/internal/service/inventory/application"
	invinfra "dtx/internal/service/inventory/infrastructure"
	invifaces "dtx/internal/service/inventory/interfaces"
	orderapp "dtx/internal/service/order/application"
	orderinfra "dtx/internal/service/order/infrastructure"
	orderifaces "dtx/internal/service/order/interfaces"
)

const serviceName = "dtx-demo"

func main() {
	logger.Init(serviceName)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	cfg.Service.Name = serviceName
	cfg.Bus.Driver = "memory"
	cfg.Lock.Driver = "memory"
	cfg.Nacos.ServerAddrs = ""

	bus := mq.NewMemoryBus(cfg.BusRetryDelay())
	txm := database.NopTxManager{}

	// 订单侧
	orderOutbox := outbox.NewMemoryStore()
	orderPublisher := outbox.NewPublisher(orderOutbox, bus.Producer(cfg.Bus.OrderTopic), cfg.Outbox.BatchSize, cfg.OutboxSweepInterval())
	orderSvc := orderapp.NewOrderService(orderinfra.NewMemoryRepository(), orderOutbox, txm, orderPublisher)
	orderConsumer := bus.Consumer(cfg.Bus.InventoryTopic)
	orderEvents := orderifaces.NewInventoryEventConsumer(idempotency.NewMemoryStore(), orderSvc)
	orderConsumer.Subscribe(orderEvents.Tags(), orderEvents.Handle)
	orderHandler := orderifaces.NewOrderHandler(orderSvc)

	// 库存侧
	invOutbox := outbox.NewMemoryStore()
	invPublisher := outbox.NewPublisher(invOutbox, bus.Producer(cfg.Bus.InventoryTopic), cfg.Outbox.BatchSize, cfg.OutboxSweepInterval())
	invSvc := invapp.NewInventoryService(invinfra.NewMemoryRepository(), dlock.NewMemoryLocker(), cfg.LockWaitTimeout(), cfg.LockHoldTimeout())
	invConsumer := bus.Consumer(cfg.Bus.OrderTopic)
	invEvents := invifaces.NewOrderEventConsumer(idempotency.NewMemoryStore(), invSvc, invOutbox, txm, invPublisher)
	invConsumer.Subscribe(invEvents.Tags(), invEvents.Handle)
	invHandler := invifaces.NewInventoryHandler(invSvc)

	scenario := func(ctx context.Context) error {
		runScenario(ctx, orderSvc, invSvc)
		return nil
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(mux *http.ServeMux) {
			orderHandler.RegisterRoutes(mux)
			invHandler.RegisterRoutes(mux)
		},
		Workers: []func(ctx context.Context) error{
			orderPublisher.Start,
			invPublisher.Start,
			orderConsumer.Start,
			invConsumer.Start,
			scenario,
		},
	})
}

// runScenario 铺底 5 件库存后下两笔订单：2 件应确认，再要 4 件应因库存不足取消。
func runScenario(ctx context.Context, orders *orderapp.OrderService, inventory *invapp.InventoryService) {
	log := logger.Ctx(ctx)

	if err := inventory.Seed(ctx, "product-1", 5); err != nil {
		log.Error().Err(err).Msg("seed failed")
		return
	}

	firstID, err := orders.PlaceOrder(ctx, "product-1", 2)
	if err != nil {
		log.Error().Err(err).Msg("place order failed")
		return
	}
	secondID, err := orders.PlaceOrder(ctx, "product-1", 4)
	if err != nil {
		log.Error().Err(err).Msg("place order failed")
		return
	}

	// 等 saga 收敛
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return
	}

	for _, id := range []string{firstID, secondID} {
		o, err := orders.Get(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("orderId", id).Msg("order lookup failed")
			continue
		}
		log.Info().Str("orderId", o.ID).Str("status", string(o.Status)).Msg("order settled")
	}
	if item, err := inventory.Get(ctx, "product-1"); err == nil {
		log.Info().Int("available", item.Available).Int("reserved", item.Reserved).Msg("inventory settled")
	}
}
