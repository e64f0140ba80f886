package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/db"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// dbCommands need a live database; create and validate only touch files.
var dbCommands = map[string]func(ctx context.Context, r *migrate.Runner, opts options, cfg *config.Config) error{
	"up":   func(ctx context.Context, r *migrate.Runner, _ options, _ *config.Config) error { return r.Up(ctx) },
	"down": func(ctx context.Context, r *migrate.Runner, _ options, _ *config.Config) error { return r.Down(ctx) },
	"redo": func(ctx context.Context, r *migrate.Runner, _ options, _ *config.Config) error { return r.Redo(ctx) },
	"reset": func(ctx context.Context, r *migrate.Runner, _ options, cfg *config.Config) error {
		if cfg.App.IsProd() {
			return errors.New("reset is disabled in prod")
		}
		return r.Reset(ctx)
	},
	"version": func(ctx context.Context, r *migrate.Runner, opts options, _ *config.Config) error {
		if opts.version == "" {
			return errors.New("missing -version")
		}
		return r.To(ctx, opts.version)
	},
	"status": func(ctx context.Context, r *migrate.Runner, _ options, _ *config.Config) error {
		lines, err := r.Status(ctx)
		for _, line := range lines {
			fmt.Println(line)
		}
		return err
	},
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "one of: create, validate, "+strings.Join(commandNames(), ", "))
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory; overrides the embedded set when changed")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("missing -name")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	command, ok := dbCommands[opts.cmd]
	if !ok {
		return fmt.Errorf("unknown command %q", opts.cmd)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": opts.cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	var source fs.FS
	if opts.dir != migrate.DefaultDir {
		source = os.DirFS(opts.dir)
	}
	runner, err := migrate.NewRunner(sqlDB, source, logg)
	if err != nil {
		return err
	}
	return command(ctx, runner, opts, cfg)
}

func commandNames() []string {
	names := make([]string, 0, len(dbCommands))
	for name := range dbCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
