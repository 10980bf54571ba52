package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"routesync/cmd"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	gorm_postgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("routesync: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "routesync",
		Short:         "Driver route synchronisation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the HTTP API, change feeds and background jobs",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, getConfigs())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, change triggers and the asset table",
		RunE: func(c *cobra.Command, _ []string) error {
			configs := getConfigs()
			gormDB, err := openDB(configs)
			if err != nil {
				return err
			}
			if err = cmd.Migrate(c.Context(), gormDB, configs.AssetBaseURL); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func serve(ctx context.Context, configs cmd.Config) error {
	if err := configs.Validate(); err != nil {
		return err
	}
	logger := newLogger(configs.LogLevel)

	gormDB, err := openDB(configs)
	if err != nil {
		return err
	}

	app, err := cmd.NewCompositionRoot(ctx, configs, gormDB, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	if err = app.CreateHTTPServer().Register(e); err != nil {
		return err
	}

	jobManager := app.CreateJobManager()
	if err = jobManager.StartAll(); err != nil {
		return err
	}
	defer jobManager.StopAll()

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range app.Runners() {
		g.Go(func() error {
			if err := r.Run(gctx); err != nil {
				return fmt.Errorf("%s: %w", r.Name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		err := e.Start(fmt.Sprintf("0.0.0.0:%s", configs.HTTPPort))
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	logger.Info("routesync started", "port", configs.HTTPPort, "change_feed", configs.ChangeFeed)
	return g.Wait()
}

func openDB(configs cmd.Config) (*gorm.DB, error) {
	gormDB, err := gorm.Open(gorm_postgres.Open(configs.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return gormDB, nil
}

func getConfigs() cmd.Config {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load(".env")

	return cmd.Config{
		HTTPPort:            envOr("HTTP_PORT", "8080"),
		DBHost:              os.Getenv("DB_HOST"),
		DBPort:              envOr("DB_PORT", "5432"),
		DBUser:              os.Getenv("DB_USER"),
		DBPassword:          os.Getenv("DB_PASSWORD"),
		DBName:              os.Getenv("DB_NAME"),
		DBSslMode:           envOr("DB_SSLMODE", "disable"),
		ChangeFeed:          envOr("CHANGE_FEED", cmd.FeedPgNotify),
		RelayDisabled:       envBool("CHANGE_RELAY_DISABLED"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             envInt("REDIS_DB"),
		RedisChannel:        envOr("REDIS_CHANNEL", "routesync:changes"),
		KafkaHost:           os.Getenv("KAFKA_HOST"),
		KafkaConsumerGroup:  os.Getenv("KAFKA_CONSUMER_GROUP"),
		KafkaChangesTopic:   envOr("KAFKA_CHANGES_TOPIC", "routesync.changes"),
		AssetBaseURL:        os.Getenv("ASSET_BASE_URL"),
		SessionIdleTTL:      envDuration("SESSION_IDLE_TTL"),
		RoutePollSchedule:   os.Getenv("ROUTE_POLL_SCHEDULE"),
		SessionReapSchedule: os.Getenv("SESSION_REAP_SCHEDULE"),
		LogLevel:            envOr("LOG_LEVEL", "info"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return n
}

func envBool(key string) bool {
	v := os.Getenv(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return b
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
