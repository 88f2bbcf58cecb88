package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/bintrack-backend/pkg/bootstrap"
	"github.com/angelmondragon/bintrack-backend/pkg/db"
	"github.com/angelmondragon/bintrack-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory (empty uses the embedded set; create defaults to "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	proc := bootstrap.Start("migrate")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger
	ctx := logg.WithFields(context.Background(), map[string]any{
		"cmd": *cmd,
		"dir": *dir,
	})

	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name, time.Now())
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	if cfg.DB.IsSQLite() {
		fail("goose migrations target postgres; sqlite stations use the dev auto-migrate")
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		proc.Fatal(ctx, "failed to bootstrap database", err)
		return
	}
	proc.OnClose("database", dbClient.Close)

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		proc.Fatal(ctx, "failed to open sql handle", err)
		return
	}

	var results []migrate.Result
	switch *cmd {
	case "up", "down", "status":
		results, err = migrate.Run(ctx, sqlDB, *dir, *cmd)
	case "version":
		if *version == "" {
			fail("missing -version for version command")
		}
		results, err = migrate.MigrateToVersion(ctx, sqlDB, *dir, *version)
	default:
		fail("unknown -cmd value: %s", *cmd)
	}
	if err != nil {
		fail("goose %s failed: %v", *cmd, err)
	}

	for _, res := range results {
		fmt.Printf("%-14d %-10s %-8s %s\n", res.Version, res.State, res.Duration.Round(time.Millisecond), res.Path)
	}
	logg.Info(logg.WithField(ctx, "migrations", len(results)), "migrate finished")
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
