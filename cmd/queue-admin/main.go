package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zoff-tech/queue-admin/pkg/admin"
	"github.com/zoff-tech/queue-admin/pkg/api"
	"github.com/zoff-tech/queue-admin/pkg/broker"
	"github.com/zoff-tech/queue-admin/pkg/config"
	"github.com/zoff-tech/queue-admin/pkg/logging"
	"github.com/zoff-tech/queue-admin/pkg/store"
	"github.com/zoff-tech/queue-admin/pkg/telemetry"
)

func main() {
	configDir := flag.String("config", "./cmd/queue-admin", "directory holding admin.yaml")
	flag.Parse()

	bootLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		bootLogger.Debug().Msg("no .env file found")
	}

	// Load configuration from file or environment
	cfg, err := config.LoadFromFile(*configDir)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("error loading configuration")
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}

	repo, err := store.NewRepository(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize repository")
	}

	messageBroker, err := broker.NewBroker(ctx, &cfg.Broker, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize broker")
	}

	svc := admin.NewService(repo, messageBroker, cfg.Broker.Topic, logger)

	var reporter *admin.Reporter
	if cfg.Dashboard.AutoRefresh {
		reporter = admin.NewReporter(svc, cfg.Dashboard.RefreshInterval, logger)
		if err := reporter.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start summary reporter")
		}
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewServer(svc, cfg.HTTP, cfg.Dashboard, logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Str("prefix", cfg.HTTP.RoutePrefix).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
	if reporter != nil {
		reporter.Stop(shutdownCtx)
	}
	if err := messageBroker.Close(); err != nil {
		logger.Error().Err(err).Msg("broker close")
	}
	if err := repo.Close(); err != nil {
		logger.Error().Err(err).Msg("repository close")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown")
	}
}
