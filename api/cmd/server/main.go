package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"imageBatch/api/cache"
	"imageBatch/api/config"
	"imageBatch/api/database"
	"imageBatch/api/handlers"
	"imageBatch/api/kafka"
	"imageBatch/api/rabbitmq"
	"imageBatch/api/repository"
	"imageBatch/api/service"
)

type dispatcher interface {
	service.Dispatcher
	Close() error
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("API Service failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Env == "development" {
		if devLogger, err := zap.NewDevelopment(); err == nil {
			logger = devLogger
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("API Service starting", zap.String("port", cfg.Port), zap.String("queue", cfg.QueueBackend))

	db, err := database.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, logger); err != nil {
			return err
		}
	}

	redisCache, err := database.ConnectCache(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer redisCache.Close()

	queue, err := newDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer queue.Close()

	svc := service.NewRequestService(
		repository.NewPostgresRepo(db.Pool),
		cache.NewStatusCache(redisCache),
		queue,
		logger,
	)
	handler := handlers.NewRequestHandler(svc, logger, cfg.MaxFileSize)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down API Service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func newDispatcher(cfg *config.Config, logger *zap.Logger) (dispatcher, error) {
	if cfg.QueueBackend == config.QueueRabbitMQ {
		return rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, logger)
	}
	return kafka.NewProducer(cfg.Brokers(), cfg.KafkaTopic)
}
