package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"docs_syncer/internal/config"
	"docs_syncer/internal/publisher"
	"docs_syncer/internal/scheduler"
	"docs_syncer/internal/server"
	"docs_syncer/internal/service"
	"docs_syncer/internal/source/drive"
	"docs_syncer/internal/storage/postgres"
	s3storage "docs_syncer/internal/storage/s3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Publisher is optional; without a broker URL sync still runs,
	// downstream consumers just get no events.
	var events service.Publisher
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	// Initialize stores
	articleStore := postgres.NewArticleStore(db)
	avatarStore := postgres.NewAvatarStore(db)
	syncStateStore := postgres.NewSyncStateStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Initialize document source
	docSource := drive.New(drive.Config{
		BaseURL:        cfg.Source.BaseURL,
		Token:          cfg.Source.Token,
		Timeout:        cfg.Source.Timeout,
		MaxAttempts:    cfg.Source.Retry.MaxAttempts,
		InitialBackoff: cfg.Source.Retry.InitialBackoff,
		MaxBackoff:     cfg.Source.Retry.MaxBackoff,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	objectStorage, err := s3storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	syncService := service.NewSyncService(
		docSource,
		articleStore,
		syncStateStore,
		txManager,
		events,
		logger,
		cfg.Source.FolderID,
		cfg.Sync,
	)

	avatarService := service.NewAvatarService(
		avatarStore,
		objectStorage,
		cfg.Sync.AvatarURLTTL,
		cfg.Sync.AvatarConcurrency,
		logger,
	)

	sched := scheduler.NewScheduler(syncService, cfg.Sync.Interval, cfg.Sync.RunTimeout, logger)
	httpServer := server.New(syncService, avatarService, cfg.Server.SyncSecret, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	go func() {
		if err := httpServer.Run(cfg.Server.Addr); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	logger.Info("starting document syncer",
		"folder", cfg.Source.FolderID,
		"interval", cfg.Sync.Interval,
		"addr", cfg.Server.Addr,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
