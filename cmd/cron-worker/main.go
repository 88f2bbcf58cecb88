package main

import (
	"context"
	"errors"
	"flag"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bintrack-backend/internal/cron"
	"github.com/angelmondragon/bintrack-backend/internal/labels"
	"github.com/angelmondragon/bintrack-backend/internal/scale"
	"github.com/angelmondragon/bintrack-backend/pkg/bootstrap"
	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/db"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/metrics"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	proc := bootstrap.Start("cron-worker")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.OpenDB(boot)
	redisClient := proc.OpenRedis(boot)

	lock, err := cron.NewRedisLock(redisClient, cfg.App.Env, 0)
	if err != nil {
		proc.Fatal(boot, "failed to create cron lock", err)
		return
	}
	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		proc.Fatal(boot, "failed to register cron jobs", err)
		return
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		proc.Fatal(boot, "failed to create cron service", err)
		return
	}

	ctx, stop := proc.SignalContext()
	defer stop()
	ctx = logg.WithField(ctx, "lock_key", lock.Key())

	if *once {
		logg.Info(ctx, "running single cron cycle")
		if err := service.RunOnce(ctx); err != nil {
			proc.Fatal(ctx, "cron cycle failed", err)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "cron worker stopped unexpectedly", err)
		return
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(conn),
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	scaleJob, err := cron.NewScaleReadingRetentionJob(cron.ScaleReadingRetentionJobParams{
		Logger:     logg,
		Repository: scale.NewRepository(conn),
		Retention:  cfg.Cron.ScaleReadingRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	printJob, err := cron.NewPrintJobRetentionJob(cron.PrintJobRetentionJobParams{
		Logger:     logg,
		Repository: labels.NewRepository(conn),
		Retention:  cfg.Cron.PrintJobRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	dlqJob, err := cron.NewDLQRetentionJob(cron.DLQRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewDLQRepository(conn),
		Retention:  cfg.Cron.DLQRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(outboxJob, scaleJob, printJob, dlqJob)
}
