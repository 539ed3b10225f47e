package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/manhunt/internal/config"
	"github.com/playperu/manhunt/internal/database"
	"github.com/playperu/manhunt/internal/engine"
	"github.com/playperu/manhunt/internal/handler/health"
	"github.com/playperu/manhunt/internal/migrations"
	"github.com/playperu/manhunt/internal/notify"
	"github.com/playperu/manhunt/internal/server"
	"github.com/playperu/manhunt/internal/store"
	"github.com/playperu/manhunt/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	version, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "schema_version", version)

	checks := map[string]health.Checker{"sqlite": dbChecker{db}}

	// --- Locations: Redis when configured, SQLite otherwise ---
	var locations engine.LocationStore = store.NewLocations(db)
	if cfg.RedisURL != "" {
		rdb, err := store.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		locations = store.NewRedisLocations(rdb)
		checks["redis"] = redisChecker{rdb}
		logger.Info("connected to redis")
	}

	// --- Notifications ---
	broker := notify.NewBroker()
	notifier := notify.Fanout{broker}
	var discord *notify.Discord
	if cfg.DiscordToken != "" {
		discord, err = notify.NewDiscord(cfg.DiscordToken, cfg.DiscordRatePerSecond, logger)
		if err != nil {
			return err
		}
		notifier = append(notifier, discord)
		checks["discord"] = discord
	}

	// --- Engine ---
	reg := telemetry.NewRegistry()
	log := store.NewBroadcastLog(db)
	engineCfg := engine.Config{
		Location:           cfg.Location,
		RoundInterval:      cfg.RoundInterval,
		TickInterval:       cfg.TickInterval,
		Workers:            cfg.TickWorkers,
		JoinWhileProcessed: cfg.JoinWhileProcessed,
		InviteBaseURL:      cfg.InviteBaseURL,
	}
	deps := engine.Deps{
		Games:     store.NewGames(db),
		Locations: locations,
		Sessions:  store.NewSessions(db),
		Log:       log,
		Notifier:  notifier,
		Recorder:  telemetry.NewRecorder(reg),
		Logger:    logger,
	}
	scheduler := engine.NewScheduler(engineCfg, deps)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Service:    engine.NewService(engineCfg, deps),
		Broadcasts: log,
		Broker:     broker,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks, health.Optional("discord")).Routes())
		r.Handle("/metrics", telemetry.Handler(reg))
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if discord != nil {
		g.Go(func() error {
			return discord.Run(gctx)
		})
	}

	return g.Wait()
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
