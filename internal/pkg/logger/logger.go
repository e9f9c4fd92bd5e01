// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger 是全局的 zerolog 实例，所有服务共用同一种输出格式
var Logger zerolog.Logger

// Init 初始化全局 Logger，service 字段用于区分多服务的日志来源
func Init(service string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if lv, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && os.Getenv("LOG_LEVEL") != "" {
		level = lv
	}

	Logger = zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()

	log.Logger = Logger
}

// Ctx 返回与 ctx 关联的 logger；没有关联时退回全局 Logger
// 用法: logger.Ctx(ctx).Info().Str("order_id", id).Msg("...")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &Logger
	}
	return l
}
