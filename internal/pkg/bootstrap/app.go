// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"dtx/internal/pkg/config"
	"dtx/internal/pkg/logger"
	"dtx/internal/pkg/nacos"
	"dtx/internal/pkg/tracing"
)

// AppInfo 描述一个服务进程需要启动的东西。
// RegisterHandlers 注册服务自己的 HTTP 路由；
// Workers 是随进程生命周期运行的后台任务（消费循环、outbox 扫描等），
// 任意一个返回错误都会触发整体退出。
type AppInfo struct {
	ServiceName      string
	Config           *config.Config
	RegisterHandlers func(mux *http.ServeMux)
	Workers          []func(ctx context.Context) error
}

// StartService 封装所有服务共用的启动与优雅关停流程
func StartService(info AppInfo) {
	logger.Init(info.ServiceName)
	cfg := info.Config

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// Nacos 注册是可选的——没配地址就跳过，单机/测试形态不依赖注册中心
	var nacosClient *nacos.Client
	var registeredIP string
	if cfg.Nacos.ServerAddrs != "" {
		nacosClient, err = nacos.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to create nacos client")
		}
		registeredIP, err = nacos.OutboundIP()
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to detect outbound ip")
		}
		if err := nacosClient.Register(info.ServiceName, registeredIP, cfg.Service.Port); err != nil {
			logger.Logger.Fatal().Err(err).Msg("failed to register service")
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(mux)
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Service.Port), Handler: mux}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.Logger.Info().Int("port", cfg.Service.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	for _, worker := range info.Workers {
		w := worker
		g.Go(func() error { return w(gctx) })
	}

	// 收到退出信号或任一 worker 出错后开始关停
	<-gctx.Done()
	logger.Logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if nacosClient != nil {
		if err := nacosClient.Deregister(info.ServiceName, registeredIP, cfg.Service.Port); err != nil {
			logger.Logger.Error().Err(err).Msg("failed to deregister from nacos")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("tracer provider shutdown failed")
	}

	if err := g.Wait(); err != nil {
		logger.Logger.Error().Err(err).Msg("service exited with error")
		os.Exit(1)
	}
	logger.Logger.Info().Msg("service stopped")
}
