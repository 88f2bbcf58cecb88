package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bintrack-backend/api/controllers"
	"github.com/angelmondragon/bintrack-backend/api/middleware"
	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/internal/checklist"
	"github.com/angelmondragon/bintrack-backend/internal/components"
	"github.com/angelmondragon/bintrack-backend/internal/labels"
	"github.com/angelmondragon/bintrack-backend/internal/scale"
	"github.com/angelmondragon/bintrack-backend/internal/scans"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

// redisStore covers what the idempotency and rate limit middleware need.
type redisStore interface {
	middleware.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Services are the domain services exposed over HTTP.
type Services struct {
	Bins       bins.Service
	Scans      scans.Service
	Components components.Service
	WorkOrders workorders.Service
	Checklist  checklist.Service
	Scale      scale.Service
	Labels     labels.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	pingers map[string]controllers.Pinger,
	store redisStore,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	scanPolicy := middleware.NewRateLimitPolicy("scan", cfg.RateLimit.ScanWindow, cfg.RateLimit.ScanLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Station(logg))
		r.Use(middleware.Idempotency(store, logg))

		r.Get("/ping", controllers.Ping())

		r.Route("/v1", func(r chi.Router) {
			r.Route("/bins", func(r chi.Router) {
				r.Post("/", controllers.RegisterBin(svc.Bins, logg))
				r.Get("/", controllers.ListBins(svc.Bins, logg))
				r.Get("/zones", controllers.BinZones(svc.Bins, logg))
				r.Post("/assign", controllers.AssignBins(svc.Bins, logg))
				r.Post("/release", controllers.ReleaseBins(svc.Bins, logg))
				r.Post("/return", controllers.ReturnBins(svc.Bins, logg))
				r.Get("/{binId}", controllers.GetBin(svc.Bins, logg))
				r.With(middleware.RateLimit(scanPolicy, store, logg)).Post("/{binId}/scan", controllers.SaveBinScan(svc.Scans, logg))
				r.Post("/{binId}/status", controllers.SetBinStatus(svc.Bins, logg))
			})

			r.Route("/components", func(r chi.Router) {
				r.Get("/", controllers.ListComponents(svc.Components, logg))
				r.Get("/{componentId}", controllers.GetComponent(svc.Components, logg))
				r.Post("/{componentId}/weight", controllers.RecordComponentWeight(svc.Components, logg))
			})

			r.Route("/work-orders/{jtc}", func(r chi.Router) {
				r.Get("/", controllers.GetWorkOrder(svc.WorkOrders, logg))
				r.Get("/bom", controllers.GetWorkOrderBOM(svc.WorkOrders, logg))
				r.Get("/bins", controllers.ListWorkOrderBins(svc.Bins, logg))
				r.Get("/bins/count", controllers.CountWorkOrderBins(svc.Bins, logg))
				r.Get("/checklist", controllers.WorkOrderChecklist(svc.Checklist, logg))
			})

			r.Get("/boms/{revisionId}", controllers.ResolveBOM(svc.WorkOrders, logg))

			r.Route("/scale", func(r chi.Router) {
				r.Get("/reading", controllers.CurrentScaleReading(svc.Scale, logg))
				r.Get("/readings", controllers.RecentScaleReadings(svc.Scale, logg))
				r.Post("/readings", controllers.IngestScaleReading(svc.Scale, logg))
			})

			r.Post("/labels/print", controllers.PrintLabel(svc.Labels, logg))

			r.Route("/print-jobs", func(r chi.Router) {
				r.Get("/", controllers.ListPrintJobs(svc.Labels, logg))
				r.Post("/{jobId}/ack", controllers.AckPrintJob(svc.Labels, logg))
			})
		})
	})

	return r
}
