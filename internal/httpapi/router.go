package httpapi

import (
	"time"

	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/health"
	"ecocommunity-gamification/pkg/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

var Module = fx.Module("http.api",
	fx.Provide(
		NewHandler,
		NewRouter,
	),
)

type RouterParams struct {
	fx.In
	Config  *config.Config
	Health  health.HealthService
	Handler *Handler
}

// NewRouter builds the gin engine served by pkg/server.
func NewRouter(p RouterParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if origins := p.Config.Server.AllowOrigins; len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderUserID},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	p.Handler.Register(r.Group("/v1", middleware.Error(), middleware.User()))

	return r
}
