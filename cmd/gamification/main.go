package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ecocommunity-gamification/internal/httpapi"
	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/db"
	"ecocommunity-gamification/pkg/gen"
	"ecocommunity-gamification/pkg/health"
	"ecocommunity-gamification/pkg/logger"
	"ecocommunity-gamification/pkg/otelcol"
	"ecocommunity-gamification/pkg/profiling"
	"ecocommunity-gamification/pkg/redis"
	"ecocommunity-gamification/pkg/server"
	"ecocommunity-gamification/pkg/task"
	"ecocommunity-gamification/services/achievement"
	"ecocommunity-gamification/services/activity"
	"ecocommunity-gamification/services/notification"
	"ecocommunity-gamification/services/reward"
	"ecocommunity-gamification/services/stats"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	opts := []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		health.Module,
		activity.Module,
		stats.Module,
		reward.Module,
		notification.Module,
		achievement.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		fx.Invoke(migrate),
		fxLogger,
	}

	if cfg.Notification.Mode == notification.ModeQueue {
		opts = append(opts, task.Client, notification.QueueModule)
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

// migrate creates the tables this service owns. The platform tables stats
// are read from are never touched.
func migrate(cfg *config.Config, conn *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	zap.L().Info("[DB] running auto migration")
	return conn.AutoMigrate(
		&stats.Snapshot{},
		&activity.Entry{},
		&achievement.Unlock{},
		&notification.Notification{},
	)
}
