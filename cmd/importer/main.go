package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/config"
	"trendforge/importer/internal/database"
	"trendforge/importer/internal/server/api"
)

const usage = `Usage: importer [command] [options]
Commands: fetch, work, start, server, stats, clear, migrate

For command-specific options, use: importer [command] -h`

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	logLevelStr := registerCommonFlags(fs, cfg)

	var (
		withServer bool
		downSteps  int
	)
	switch cmd {
	case "work":
		fs.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount,
			"Number of worker goroutines, 0 for CPU count (env: TRENDS_WORKERS)")
	case "start":
		fs.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount,
			"Number of worker goroutines, 0 for CPU count (env: TRENDS_WORKERS)")
		fs.StringVar(&cfg.CronSchedule, "schedule", cfg.CronSchedule,
			"Cron schedule of the trends fetch (env: TRENDS_CRON_SCHEDULE)")
		fs.BoolVar(&withServer, "server", false, "Also serve the admin API")
		registerServerFlags(fs, cfg)
	case "server":
		registerServerFlags(fs, cfg)
	case "migrate":
		fs.IntVar(&downSteps, "down", 0, "Roll back the given number of migrations instead of applying them")
	case "fetch", "stats", "clear":
	case "-h", "--help", "help":
		fmt.Println(usage)
		os.Exit(0)
	default:
		log.Error().Str("command", cmd).Msg("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}

	fs.Parse(os.Args[2:])

	// Handle log level parsing separately since it needs conversion
	if level, err := zerolog.ParseLevel(*logLevelStr); err == nil {
		cfg.LogLevel = level
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "migrate":
		err = runMigrate(cfg, downSteps)
	default:
		err = withApp(cfg, func(a *app) error {
			switch cmd {
			case "fetch":
				return runFetch(ctx, a)
			case "work":
				return runWork(ctx, a)
			case "start":
				return runStart(ctx, a, withServer)
			case "server":
				return a.runServer(ctx)
			case "stats":
				return runStats(ctx, a)
			default:
				return runClear(ctx, a)
			}
		})
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("Command failed")
		os.Exit(1)
	}
}

func registerCommonFlags(fs *flag.FlagSet, cfg *config.Config) *string {
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver,
		"Database driver: sqlite3 or postgres (env: TRENDS_DB_DRIVER)")
	fs.StringVar(&cfg.DBDSN, "db", cfg.DBDSN,
		"SQLite file path or Postgres connection string (env: TRENDS_DB_DSN)")
	fs.StringVar(&cfg.QueueBackend, "queue", cfg.QueueBackend,
		"Queue backend: database or redis (env: TRENDS_QUEUE)")
	return fs.String("log-level", cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: TRENDS_LOG_LEVEL)")
}

func registerServerFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.ServerHost, "host", cfg.ServerHost,
		"Host to bind the server to (env: TRENDS_HOST)")
	fs.IntVar(&cfg.ServerPort, "port", cfg.ServerPort,
		"Port to listen on (env: TRENDS_PORT)")
}

func withApp(cfg *config.Config, fn func(*app) error) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// runFetch imports the feed once and prints the outcome.
func runFetch(ctx context.Context, a *app) error {
	sum, err := a.ingestor.FetchAndSaveTrends(ctx)
	if err != nil {
		printStatus(api.StatusError, err.Error())
		return err
	}
	printStatus(api.StatusOK, api.FetchMessage(sum))
	return nil
}

// runClear deletes all trends and news items and empties the queue.
func runClear(ctx context.Context, a *app) error {
	if err := a.ingestor.ClearData(ctx); err != nil {
		printStatus(api.StatusError, err.Error())
		return err
	}
	printStatus(api.StatusOK, "All trends data has been cleared.")
	return nil
}

// runWork processes every trend that is currently due and exits.
func runWork(ctx context.Context, a *app) error {
	worker, err := a.newWorker()
	if err != nil {
		return err
	}

	start := time.Now()
	worker.Drain(ctx)

	processed, retried, abandoned := worker.Stats()
	log.Info().
		Int64("processed", processed).
		Int64("retried", retried).
		Int64("abandoned", abandoned).
		Dur("duration", time.Since(start)).
		Msg("Queue drained")
	return nil
}

// runStart runs the scheduled import and the worker pool until a shutdown signal.
func runStart(ctx context.Context, a *app, withServer bool) error {
	worker, err := a.newWorker()
	if err != nil {
		return err
	}

	if a.cfg.CronEnabled {
		c, err := scheduleFetch(ctx, a)
		if err != nil {
			return err
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
		log.Info().Str("schedule", a.cfg.CronSchedule).Msg("Scheduled trends fetch")
	} else {
		log.Info().Msg("Cron is disabled, trends are only imported on demand")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	if withServer {
		go func() {
			err := a.runServer(runCtx)
			if err != nil {
				cancel()
			}
			serverErr <- err
		}()
	}

	worker.Run(runCtx)
	log.Info().Msg("Worker pool stopped")

	if withServer {
		if err := <-serverErr; err != nil {
			return err
		}
	}
	return nil
}

// runStats prints the dashboard counters as JSON.
func runStats(ctx context.Context, a *app) error {
	stats, err := a.stats(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// runMigrate applies pending migrations, or rolls back the last down of them.
func runMigrate(cfg *config.Config, down int) error {
	dbCfg := database.NewConfig(cfg.DBDriver, cfg.DBDSN)
	dbCfg.SkipMigrations = down > 0

	db, err := database.NewDB(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if down > 0 {
		if err := db.Rollback(down); err != nil {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}
		log.Info().Int("steps", down).Msg("Migrations rolled back")
	}
	return nil
}

func printStatus(status, message string) {
	out, err := json.Marshal(api.StatusResponse{Status: status, Message: message})
	if err != nil {
		fmt.Println(message)
		return
	}
	fmt.Println(string(out))
}
