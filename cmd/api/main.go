package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bintrack-backend/api/controllers"
	"github.com/angelmondragon/bintrack-backend/api/routes"
	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/internal/checklist"
	"github.com/angelmondragon/bintrack-backend/internal/components"
	"github.com/angelmondragon/bintrack-backend/internal/labels"
	"github.com/angelmondragon/bintrack-backend/internal/locks"
	"github.com/angelmondragon/bintrack-backend/internal/scale"
	"github.com/angelmondragon/bintrack-backend/internal/scans"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	"github.com/angelmondragon/bintrack-backend/pkg/bootstrap"
	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/db"
	"github.com/angelmondragon/bintrack-backend/pkg/env"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/metrics"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
	"github.com/angelmondragon/bintrack-backend/pkg/redis"
	"github.com/angelmondragon/bintrack-backend/pkg/scalebridge"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	proc := bootstrap.Start("api")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.OpenDB(context.Background())
	redisClient := proc.OpenRedis(context.Background())

	services, err := buildServices(cfg, logg, dbClient, redisClient, prometheus.DefaultRegisterer)
	if err != nil {
		proc.Fatal(context.Background(), "failed to build services", err)
		return
	}

	addr := ":" + listenPort(cfg.App.Port)
	ctx, stop := proc.SignalContext()
	defer stop()
	ctx = logg.WithField(ctx, "addr", addr)

	pingers := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, pingers, redisClient, prometheus.DefaultGatherer, *services),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(ctx, "api server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			proc.Fatal(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server drained")
	}
}

// listenPort honours PORT from the hosting platform over the configured port.
func listenPort(configured string) string {
	if port := env.Get("PORT", ""); port != "" {
		return port
	}
	return configured
}

// buildServices wires repositories, the Redis lock, the outbox and the scale
// bridge into the domain services the router exposes.
func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*routes.Services, error) {
	conn := dbClient.DB()
	binMetrics := metrics.NewBinMetrics(reg)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	lifecycle := bins.NewLifecycle(bins.Policy{
		AllowDiscrepantWithoutJTC: cfg.Policy.AllowDiscrepantWithoutJTC,
		AllowOverrideReleased:     cfg.Policy.AllowOverrideReleased,
		AllowReturnStaged:         cfg.Policy.AllowReturnStaged,
	})

	locker, err := locks.NewRedisLocker(redisClient, cfg.Locks, logg)
	if err != nil {
		return nil, err
	}

	binRepo := bins.NewRepository(conn)
	workOrderRepo := workorders.NewRepository(conn)
	checklistRepo := checklist.NewRepository(conn)
	componentRepo := components.NewRepository(conn)

	workOrderService, err := workorders.NewService(workOrderRepo)
	if err != nil {
		return nil, err
	}

	checklistService, err := checklist.NewService(checklistRepo, workOrderRepo, dbClient)
	if err != nil {
		return nil, err
	}

	binService, err := bins.NewService(bins.ServiceParams{
		Repo:          binRepo,
		WorkOrders:    workOrderRepo,
		Checklist:     checklistRepo,
		Tx:            dbClient,
		Locker:        locker,
		Outbox:        emitter,
		Lifecycle:     lifecycle,
		Metrics:       binMetrics,
		Logger:        logg,
		DefaultCopies: cfg.Labels.DefaultCopies,
	})
	if err != nil {
		return nil, err
	}

	componentService, err := components.NewService(components.ServiceParams{
		Repo:    componentRepo,
		Tx:      dbClient,
		Outbox:  emitter,
		Metrics: binMetrics,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	bridge, err := scalebridge.NewClient(cfg.Scale.BridgeURL, cfg.Scale.Timeout)
	if err != nil {
		return nil, err
	}
	scaleService, err := scale.NewService(scale.ServiceParams{
		Repo:           scale.NewRepository(conn),
		Cache:          redisClient,
		Bridge:         bridge,
		CacheTTL:       cfg.Scale.CacheTTL,
		DefaultStation: cfg.Scale.DefaultStation,
		Logger:         logg,
	})
	if err != nil {
		return nil, err
	}

	scanService, err := scans.NewService(scans.ServiceParams{
		Bins:          binRepo,
		Components:    componentRepo,
		Calibrator:    componentService,
		WorkOrders:    workOrderRepo,
		Scale:         scaleService,
		Tx:            dbClient,
		Locker:        locker,
		Outbox:        emitter,
		Lifecycle:     lifecycle,
		Metrics:       binMetrics,
		Logger:        logg,
		DefaultCopies: cfg.Labels.DefaultCopies,
	})
	if err != nil {
		return nil, err
	}

	labelService, err := labels.NewService(labels.ServiceParams{
		Repo:          labels.NewRepository(conn),
		Bins:          binRepo,
		Tx:            dbClient,
		Outbox:        emitter,
		Metrics:       binMetrics,
		Logger:        logg,
		DefaultCopies: cfg.Labels.DefaultCopies,
	})
	if err != nil {
		return nil, err
	}

	return &routes.Services{
		Bins:       binService,
		Scans:      scanService,
		Components: componentService,
		WorkOrders: workOrderService,
		Checklist:  checklistService,
		Scale:      scaleService,
		Labels:     labelService,
	}, nil
}
