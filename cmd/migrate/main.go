package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up        apply all pending migrations
  down      roll back the latest migration
  status    print applied and pending migrations
  to        migrate up or down to -version
  create    scaffold a new SQL migration named -name under -dir
  validate  check migration filenames and goose annotations

Without -dir the migrations compiled into the binary are used.`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name for create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for to")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	if err := run(command, *dir, *name, *version); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", command, err)
		os.Exit(1)
	}
}

func source(dir string) fs.FS {
	if dir == "" {
		return migrate.Migrations()
	}
	return os.DirFS(dir)
}

func run(command, dir, name, version string) error {
	switch command {
	case "create":
		if name == "" {
			return fmt.Errorf("-name is required")
		}
		target := dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.CreateSQLMigration(target, name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateFS(source(dir)); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	case "up", "down", "status", "to":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.LogFormat == "console",
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": command})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	return apply(ctx, sqlDB, logg, command, source(dir), version)
}

func apply(ctx context.Context, sqlDB *sql.DB, logg *logger.Logger, command string, fsys fs.FS, version string) error {
	runner, err := migrate.NewRunner(sqlDB, fsys, logg)
	if err != nil {
		return err
	}
	switch command {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "to":
		target, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			return fmt.Errorf("-version %q (expected YYYYMMDDHHMMSS): %w", version, err)
		}
		return runner.To(ctx, target)
	}
	rows, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		state := "pending"
		if row.Applied {
			state = "applied"
		}
		fmt.Printf("%-8s %d %s\n", state, row.Version, row.Path)
	}
	return nil
}
