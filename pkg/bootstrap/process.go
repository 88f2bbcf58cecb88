// Package bootstrap holds the start-up sequence shared by the api, worker,
// cron-worker and outbox-publisher binaries.
package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/bintrack-backend/pkg/config"
	"github.com/angelmondragon/bintrack-backend/pkg/db"
	"github.com/angelmondragon/bintrack-backend/pkg/instance"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/migrate"
	"github.com/angelmondragon/bintrack-backend/pkg/pubsub"
	"github.com/angelmondragon/bintrack-backend/pkg/redis"
)

type closer struct {
	name  string
	close func() error
}

// Process is one running binary: its config, logger and the clients it
// opened. Clients are closed in reverse order by Close or Fatal.
type Process struct {
	Kind   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
	exit    func(int)
}

// Start loads .env and the environment config, then builds the process logger.
// A config error is fatal.
func Start(kind string) *Process {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	return newProcess(kind, cfg)
}

func newProcess(kind string, cfg *config.Config) *Process {
	cfg.Service.Kind = kind
	return &Process{
		Kind:   kind,
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Environment: cfg.App.Env,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			Format:      cfg.App.LogFormat,
			WarnStack:   cfg.App.LogWarnStack,
		}),
		exit: os.Exit,
	}
}

// OnClose registers fn to run at shutdown.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, close: fn})
}

// Close runs the registered closers newest first. Failures are logged.
func (p *Process) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			p.Logger.Error(p.Logger.WithField(context.Background(), "resource", c.name), "error closing "+c.name, err)
		}
	}
	p.closers = nil
}

// Fatal logs err, releases everything opened so far and exits non-zero.
func (p *Process) Fatal(ctx context.Context, msg string, err error) {
	p.Logger.Error(ctx, msg, err)
	p.Close()
	p.exit(1)
}

// OpenDB connects to the database and applies dev migrations when enabled.
func (p *Process) OpenDB(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		p.Fatal(ctx, "failed to bootstrap database", err)
		return nil
	}
	p.OnClose("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		p.Fatal(ctx, "failed to run dev migrations", err)
		return nil
	}
	return client
}

func (p *Process) OpenRedis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		p.Fatal(ctx, "failed to bootstrap redis", err)
		return nil
	}
	p.OnClose("redis", client.Close)
	return client
}

func (p *Process) OpenPubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		p.Fatal(ctx, "failed to bootstrap pubsub", err)
		return nil
	}
	p.OnClose("pubsub", client.Close)
	return client
}

// SignalContext is cancelled on SIGINT or SIGTERM. Its log fields identify
// the process.
func (p *Process) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return p.Logger.WithFields(ctx, map[string]any{
		"service_kind": p.Kind,
		"instance":     instance.ID(p.Kind),
	}), stop
}
