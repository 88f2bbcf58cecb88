package main

import (
	"context"
	"errors"

	"github.com/angelmondragon/bintrack-backend/pkg/bootstrap"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	defer proc.Close()
	boot := context.Background()

	dbClient := proc.OpenDB(boot)
	pubsubClient := proc.OpenPubSub(boot)

	eventRegistry, err := registry.NewEventRegistry(proc.Config.PubSub)
	if err != nil {
		proc.Fatal(boot, "failed to build event registry", err)
		return
	}
	conn := dbClient.DB()
	service, err := NewService(ServiceParams{
		Config:        proc.Config,
		Logger:        proc.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(conn),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(conn),
	})
	if err != nil {
		proc.Fatal(boot, "failed to create outbox publisher", err)
		return
	}

	ctx, stop := proc.SignalContext()
	defer stop()
	proc.Logger.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Fatal(ctx, "outbox publisher stopped unexpectedly", err)
		return
	}
	proc.Logger.Info(ctx, "outbox publisher drained")
}
