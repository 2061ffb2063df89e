package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"homecare-booking/cmd"
	"homecare-booking/internal/data/repository"
	"homecare-booking/internal/data/repository/memory"
	"homecare-booking/internal/gateway"
	"homecare-booking/internal/jobs"
	"homecare-booking/internal/usecase"
	"homecare-booking/internal/wire"
	"homecare-booking/pkg/cache"
	"homecare-booking/pkg/database"
	"homecare-booking/pkg/mailer"
	"homecare-booking/pkg/utils"

	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("db_driver", config.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	// Storage
	var repo *repository.Repository
	switch config.Database.Driver {
	case "memory":
		var store *memory.Store
		repo, store = memory.NewRepository(clock)
		cmd.SeedDemo(store, clock, logger)
		logger.Warn("Using in-memory store, data is lost on restart")
	default:
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database connected successfully")
		repo = repository.NewRepository(db, logger)
	}

	// Status cache
	var statusCache usecase.StatusCache
	if config.Redis.Addr != "" {
		client := cache.NewRedisClient(config.Redis.Addr, config.Redis.Password, config.Redis.DB)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis ping failed", zap.Error(err), zap.String("addr", config.Redis.Addr))
		}
		statusCache = cache.NewRedisCache(client, config.Redis.StatusCacheTTL)
	} else {
		statusCache = cache.NewMemoryCache(config.Redis.StatusCacheTTL, clock)
	}

	// Email delivery
	var sender mailer.Sender
	if config.Email.Host != "" {
		sender = mailer.NewSMTPSender(config.Email.Host, config.Email.Port, config.Email.User,
			config.Email.Password, config.Email.From, logger)
	} else {
		sender = mailer.NewLogSender(logger)
	}
	emails := jobs.NewEmailHandler(repo, sender, logger)

	var notifier usecase.BookingNotifier
	if config.Redis.Addr != "" {
		client := asynq.NewClient(jobs.RedisOpt(config.Redis))
		defer client.Close()
		notifier = jobs.NewQueueNotifier(client, logger)

		srv, mux := jobs.NewWorker(config, emails)
		stopWorker, err := cmd.Worker(srv, mux, logger)
		if err != nil {
			logger.Fatal("Failed to start worker", zap.Error(err))
		}
		defer stopWorker()
	} else {
		logger.Warn("REDIS_ADDR not set, booking emails are sent inline")
		notifier = jobs.NewInlineNotifier(emails)
	}

	// Wire all dependencies
	app := wire.Wiring(repo, config, usecase.Collaborators{
		Clock:    clock,
		Gateway:  gateway.New(config.Payment, logger),
		Notifier: notifier,
		Cache:    statusCache,
	}, logger)

	// Periodic sweeps
	scheduler, err := jobs.NewScheduler(app.Service.Maintenance, config.Jobs.MaintenanceInterval, clock, logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Error("Failed to stop scheduler", zap.Error(err))
		}
	}()

	// Start server
	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
	}
}
