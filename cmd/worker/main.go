package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/internal/labels"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	"github.com/angelmondragon/bintrack-backend/pkg/bootstrap"
	"github.com/angelmondragon/bintrack-backend/pkg/metrics"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/idempotency"
)

func main() {
	proc := bootstrap.Start("worker")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.OpenDB(boot)
	redisClient := proc.OpenRedis(boot)
	pubsubClient := proc.OpenPubSub(boot)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		proc.Fatal(boot, "failed to create idempotency manager", err)
		return
	}

	conn := dbClient.DB()
	labelConsumer, err := labels.NewConsumer(labels.ConsumerParams{
		Repo:         labels.NewRepository(conn),
		Bins:         bins.NewRepository(conn),
		WorkOrders:   workorders.NewRepository(conn),
		Subscription: pubsubClient.LabelsSubscription(),
		Idempotency:  manager,
		Decoders:     labels.NewDecoders(),
		Metrics:      metrics.NewBinMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	if err != nil {
		proc.Fatal(boot, "failed to create label consumer", err)
		return
	}

	service, err := NewService(ServiceParams{
		Logger:   logg,
		Checks:   map[string]readinessCheck{"database": dbClient.Ping, "redis": redisClient.Ping, "pubsub": pubsubClient.Ping},
		Consumer: labelConsumer,
	})
	if err != nil {
		proc.Fatal(boot, "failed to create worker service", err)
		return
	}

	ctx, stop := proc.SignalContext()
	defer stop()
	logg.Info(ctx, "starting label worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "worker stopped unexpectedly", err)
		return
	}
	logg.Info(ctx, "worker shutting down gracefully")
}
