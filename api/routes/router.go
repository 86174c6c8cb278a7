package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/profitlens/api/controllers"
	analyticscontrollers "github.com/angelmondragon/profitlens/api/controllers/analytics"
	"github.com/angelmondragon/profitlens/api/middleware"
	"github.com/angelmondragon/profitlens/internal/app"
	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/metrics"
	"github.com/angelmondragon/profitlens/pkg/redis"
)

// Infra carries the shared clients the router needs for probes, throttling
// and metrics. Redis is optional; without it rate limiting and idempotent
// replays are skipped.
type Infra struct {
	Readiness   []controllers.ReadinessCheck
	Redis       *redis.Client
	HTTPMetrics *metrics.HTTPMetrics
	Metrics     http.Handler
}

// NewRouter mounts the probes, the metrics endpoint and the /api/v1 routes.
func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc *app.Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, infra.Readiness...))
	})
	if infra.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", infra.Metrics)
	}

	// A nil *redis.Client must not reach the middlewares as a non-nil interface.
	syncPolicy := middleware.NewRateLimitPolicy("sync", cfg.App.SyncRateWindow, cfg.App.SyncRateLimit)
	syncLimit := middleware.RateLimit(syncPolicy, nil, logg)
	var idempotencyStore redis.ResponseStore
	if infra.Redis != nil {
		syncLimit = middleware.RateLimit(syncPolicy, infra.Redis, logg)
		idempotencyStore = infra.Redis
	}
	var observer middleware.RequestObserver
	if infra.HTTPMetrics != nil {
		observer = infra.HTTPMetrics
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Metrics(observer))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(svc.Products, logg))
			r.Post("/", controllers.CreateProduct(svc.Products, logg))
			r.Post("/import", controllers.ImportProducts(svc.Products, svc.Platforms, logg))
			r.Get("/{productId}", controllers.GetProduct(svc.Products, logg))
			r.Put("/{productId}", controllers.UpdateProduct(svc.Products, logg))
			r.Delete("/{productId}", controllers.DeleteProduct(svc.Products, logg))
		})

		r.Route("/platforms", func(r chi.Router) {
			r.Get("/", controllers.ListPlatforms(svc.Platforms, logg))
			r.Post("/", controllers.CreatePlatform(svc.Platforms, logg))
			r.Post("/reset", controllers.ResetPlatforms(svc.Platforms, logg))
			r.Get("/{platformId}", controllers.GetPlatform(svc.Platforms, logg))
			r.Patch("/{platformId}", controllers.UpdatePlatform(svc.Platforms, logg))
			r.Delete("/{platformId}", controllers.DeletePlatform(svc.Platforms, logg))
		})

		r.Get("/settings", controllers.GetSettings(svc.Settings, logg))
		r.Put("/settings", controllers.UpdateSettings(svc.Settings, logg))

		r.Route("/calculations", func(r chi.Router) {
			r.Post("/compute", controllers.ComputeResult(svc.Pricing, logg))
			r.Post("/all", controllers.ComputeAllResults(svc.Pricing, logg))
			r.Post("/break-even", controllers.BreakEven(svc.Pricing, logg))
			r.Post("/simulate", controllers.Simulate(svc.Pricing, logg))
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/alerts", analyticscontrollers.Alerts(svc.Analytics, logg))
			r.Get("/heatmap", analyticscontrollers.Heatmap(svc.Analytics, logg))
			r.Get("/marketplace/{platformId}", analyticscontrollers.Marketplace(svc.Analytics, logg))
			r.Get("/recommendations", analyticscontrollers.Recommendations(svc.Analytics, logg))
			r.Get("/dashboard", analyticscontrollers.Dashboard(svc.Analytics, logg))
			r.Get("/trends", analyticscontrollers.Trends(svc.Trends, logg))
		})

		r.Route("/exports", func(r chi.Router) {
			r.Get("/results.csv", controllers.ExportResults(svc.Pricing, logg))
			r.Get("/sku-template.csv", controllers.ExportProductTemplate(svc.Products, svc.Platforms, logg))
		})

		r.Get("/changelog", controllers.ListChangeLog(svc.ChangeLog, logg))
		r.Delete("/changelog", controllers.ClearChangeLog(svc.ChangeLog, logg))

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", controllers.ListSnapshots(svc.Snapshots, logg))
			r.Post("/", controllers.TakeSnapshot(svc.Snapshots, logg))
			r.Get("/compare", controllers.CompareSnapshots(svc.Snapshots, logg))
			r.Get("/{snapshotId}", controllers.GetSnapshot(svc.Snapshots, logg))
			r.Delete("/{snapshotId}", controllers.DeleteSnapshot(svc.Snapshots, logg))
		})

		r.Route("/sync", func(r chi.Router) {
			r.Use(syncLimit)
			r.Post("/pull", controllers.SyncPull(svc.Sync, logg))
			r.Post("/push", controllers.SyncPush(svc.Sync, logg))
		})
	})

	return r
}
