package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/mollie-gateway/docs"
	"github.com/fatflowers/mollie-gateway/internal/app/api/handlers"
	mw "github.com/fatflowers/mollie-gateway/internal/app/api/middleware"
	"github.com/fatflowers/mollie-gateway/internal/app/service/donation"
	"github.com/fatflowers/mollie-gateway/internal/app/service/gateway"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	cfgpkg "github.com/fatflowers/mollie-gateway/pkg/config"
	"github.com/fatflowers/mollie-gateway/pkg/metrics"
)

type routeParams struct {
	fx.In

	Log       *zap.SugaredLogger
	Cfg       *cfgpkg.Config
	DB        *gorm.DB
	Registry  *registry.Registry
	Donations *donation.Service
	Gateway   *gateway.Gateway
	Metrics   *metrics.Prometheus
}

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func newPrometheus(log *zap.SugaredLogger) *metrics.Prometheus {
	return metrics.NewPrometheus(metrics.NewPrometheusOptions{Subsystem: "http", Logger: log})
}

func registerRoutes(r *gin.Engine, p routeParams) {
	// Without a dedicated listener the scrape endpoint lives on the main engine.
	if p.Cfg.MetricsAddr == "" {
		p.Metrics.Use(r)
	} else {
		r.Use(p.Metrics.HandlerFunc())
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(p.Log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub, p.DB)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Admin APIs behind JWT
	admin := r.Group("/api/v1/admin")
	admin.Use(mw.RequestLoggerMiddleware(p.Log), mw.AccessLogMiddleware(), mw.AdminAuth(p.Cfg.Admin.JWTSecret))
	handlers.RegisterAdminRoutes(admin, p.Registry, p.Donations, p.Gateway, p.Log)

	// Payment v2 APIs, including the gateway webhooks
	apiV2Payment := r.Group("/api/v2/payment")
	apiV2Payment.Use(mw.RequestLoggerMiddleware(p.Log), mw.AccessLogMiddleware())
	handlers.RegisterPaymentV2Routes(apiV2Payment, p.Registry, p.Donations, p.Log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine, prom *metrics.Prometheus) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	servers := []*http.Server{{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}}
	if cfg.MetricsAddr != "" {
		servers = append(servers, &http.Server{Addr: cfg.MetricsAddr, Handler: prom.Handler(), ReadHeaderTimeout: 5 * time.Second})
	}

	for _, srv := range servers {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				log.Infow("starting HTTP server", "addr", srv.Addr)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Errorf("server error: %v", err)
						panic(err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				log.Infow("stopping HTTP server", "addr", srv.Addr)
				shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			},
		})
	}
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(newPrometheus),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
