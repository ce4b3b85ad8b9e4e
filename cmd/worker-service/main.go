package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tudinhtu98/copee-nest/internal/catalog"
	"github.com/tudinhtu98/copee-nest/internal/config"
	"github.com/tudinhtu98/copee-nest/internal/ledger"
	"github.com/tudinhtu98/copee-nest/internal/media"
	"github.com/tudinhtu98/copee-nest/internal/pipeline"
	"github.com/tudinhtu98/copee-nest/internal/publisher"
	"github.com/tudinhtu98/copee-nest/internal/storage"
	"github.com/tudinhtu98/copee-nest/shared/logger"
	"github.com/tudinhtu98/copee-nest/shared/postgresql"
	"github.com/tudinhtu98/copee-nest/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	db := dbClient.GetDB()

	// Wire the publish orchestrator: category resolution, image relay,
	// listing creation.
	resolver := catalog.NewResolver(storage.NewMappingStorage(db), appLogger.Logger)
	relay := media.NewRelay(&http.Client{}, media.Config{
		DownloadAttempts: cfg.Media.DownloadAttempts,
		DownloadTimeout:  cfg.Media.DownloadTimeout,
		UploadTimeout:    cfg.Media.UploadTimeout,
		BackoffBase:      cfg.Media.BackoffBase,
		BackoffMax:       cfg.Media.BackoffMax,
		SourceReferer:    cfg.Media.SourceReferer,
	}, appLogger.Logger)
	orchestrator := publisher.New(resolver, relay, &http.Client{}, appLogger.Logger)

	queue := pipeline.NewRabbitQueue(rabbitClient, cfg.RabbitMQ.Consumer.PrefetchCount, appLogger.Logger)

	pipelineService := pipeline.NewService(&pipeline.Dependencies{
		Jobs:         storage.NewJobStorage(db, appLogger.Logger),
		Products:     storage.NewProductStorage(db, appLogger.Logger),
		Destinations: storage.NewDestinationStorage(db),
		Ledger:       ledger.NewService(ledger.NewPostgresStore(db), appLogger.Logger),
		Orchestrator: orchestrator,
		Queue:        queue,
		Logger:       appLogger.Logger,
		Config: pipeline.Config{
			MaxRetries:  cfg.Pipeline.MaxRetries,
			BackoffBase: cfg.Pipeline.BackoffBase,
			BackoffMax:  cfg.Pipeline.BackoffMax,
			UploadCost:  cfg.Pipeline.UploadCost,
		},
	})

	workerInstance := pipeline.NewWorker(&pipeline.WorkerConfig{
		Logger:      appLogger.Logger,
		Service:     pipelineService,
		Queue:       queue,
		Concurrency: cfg.Pipeline.Concurrency,
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerInstance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	appLogger.Info("Worker service started successfully")

	// Periodically re-dispatch PENDING jobs whose queue message was lost,
	// e.g. a dispatch failure at enqueue time or a crash mid-backoff.
	go func() {
		ticker := time.NewTicker(cfg.Pipeline.StallSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := pipelineService.RequeueStalled(ctx, cfg.Pipeline.StallAge); err != nil {
					appLogger.Error("Stalled job sweep failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	// Cancel context to stop worker
	cancel()

	// Give worker time to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Pipeline.ShutdownTimeout)
	defer shutdownCancel()

	// Stop worker
	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
