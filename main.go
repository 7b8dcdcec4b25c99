// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transport-booking/cmd"
	"transport-booking/internal/data/repository"
	"transport-booking/internal/event"
	"transport-booking/internal/notify"
	"transport-booking/internal/usecase"
	"transport-booking/internal/wire"
	"transport-booking/internal/worker"
	"transport-booking/pkg/database"
	"transport-booking/pkg/obs"
	"transport-booking/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.Name, config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.Bool("http", config.App.HTTPEnabled),
		zap.Bool("workers", config.App.WorkersEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, config.App.Name, config.Tracing.Endpoint, config.Tracing.Environment)
	if err != nil {
		logger.Fatal("Failed to init tracer", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	if config.Database.Migrate {
		if err := database.Migrate(database.ConnString(config.Database), logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	store := repository.NewStore(db, logger)
	service := usecase.NewService(store, store.Repository, logger)

	g, ctx := errgroup.WithContext(ctx)

	if config.App.WorkersEnabled {
		registry := event.NewRegistry()
		service.Projector.Register(registry)

		publisher, closePublisher, err := notify.New(config.Notify, config.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to init publisher", zap.Error(err))
		}
		defer closePublisher()

		relay := worker.NewRelay(store, store.Repository, publisher, registry, config.Relay, logger)
		sweeper := worker.NewOfferSweeper(service.Dispatch, config.Sweeper, logger)

		g.Go(func() error {
			return cmd.Workers(ctx, logger, relay, sweeper)
		})
	}

	if config.App.HTTPEnabled {
		app := wire.Wiring(service, logger)

		g.Go(func() error {
			return cmd.APIServer(ctx, app.Router, config.App.Port, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		return
	}
	logger.Info("Application stopped")
}
