package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/db"
	"ecocommunity-gamification/pkg/gen"
	"ecocommunity-gamification/pkg/logger"
	"ecocommunity-gamification/pkg/otelcol"
	"ecocommunity-gamification/pkg/profiling"
	"ecocommunity-gamification/pkg/redis"
	"ecocommunity-gamification/pkg/task"
	"ecocommunity-gamification/services/notification"
)

// The worker drains queued notifications when NOTIFICATION.MODE is queue.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		task.Server,
		notification.TaskModule,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
