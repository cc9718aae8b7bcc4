package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/ecomstore/storefront-backend/pkg/config"
	"github.com/ecomstore/storefront-backend/pkg/db"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	"github.com/ecomstore/storefront-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up              apply all pending migrations
  down            roll back the latest migration
  to <version>    migrate up or down to version (YYYYMMDDHHMMSS)
  status          list applied and pending migrations
  create <name>   write an empty migration into -dir (default %s)
  validate        check migration file names and goose markers
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() { fmt.Fprintf(flag.CommandLine.Output(), usage, migrate.SourceDir) }
	flag.Parse()

	cmd, arg := flag.Arg(0), flag.Arg(1)
	if cmd == "" {
		flag.Usage()
		os.Exit(2)
	}

	fsys := migrate.Embedded()
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}

	// create and validate work on files only.
	switch cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, arg, time.Now())
		fail(err)
		fmt.Println("created", path)
		return
	case "validate":
		fail(migrate.Validate(fsys))
		fmt.Println("migrations ok")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	fail(err)

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	fail(err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	fail(err)
	runner, err := migrate.NewRunner(sqlDB, fsys, logg)
	fail(err)

	switch cmd {
	case "up":
		err = runner.Up(ctx)
	case "down":
		err = runner.Down(ctx)
	case "to":
		version, perr := strconv.ParseInt(arg, 10, 64)
		if perr != nil {
			fail(fmt.Errorf("invalid version %q: %w", arg, perr))
		}
		err = runner.To(ctx, version)
	case "status":
		err = printStatus(ctx, runner)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, runner *migrate.Runner) error {
	statuses, err := runner.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, st.Source.Path)
	}
	return tw.Flush()
}

func fail(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
