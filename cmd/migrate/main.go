package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/campusaid-backend/pkg/config"
	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|to|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory for create and validate")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	switch *cmd {
	case "create":
		if *name == "" {
			exit(ctx, logg, "missing -name", nil)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exit(ctx, logg, "create migration", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exit(ctx, logg, "validate migrations", err)
		}
		fmt.Println("migrations ok")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit(ctx, logg, "load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit(ctx, logg, "connect database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		exit(ctx, logg, "extract sql.DB", err)
	}
	migrator, err := migrate.New(sqlDB)
	if err != nil {
		exit(ctx, logg, "build migrator", err)
	}

	var steps []migrate.Step
	switch *cmd {
	case "up":
		steps, err = migrator.Up(ctx)
	case "down":
		steps, err = migrator.Down(ctx)
	case "to":
		if *version == "" {
			exit(ctx, logg, "missing -version", nil)
		}
		steps, err = migrator.To(ctx, *version)
	case "status":
		var rows []migrate.Status
		rows, err = migrator.Status(ctx)
		for _, row := range rows {
			state := "pending"
			if row.Applied {
				state = "applied"
			}
			fmt.Printf("%d  %-8s %s\n", row.Version, state, row.Path)
		}
	default:
		exit(ctx, logg, "unknown -cmd "+*cmd, nil)
	}
	if err != nil {
		exit(ctx, logg, "migrate "+*cmd, err)
	}
	for _, step := range steps {
		fmt.Printf("%s %d %s\n", step.Direction, step.Version, step.Path)
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migrate.complete")
}

func exit(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
