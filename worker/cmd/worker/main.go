package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"imageBatch/worker/cache"
	"imageBatch/worker/config"
	"imageBatch/worker/converter"
	"imageBatch/worker/fetcher"
	"imageBatch/worker/kafka"
	"imageBatch/worker/models"
	"imageBatch/worker/notifier"
	"imageBatch/worker/pool"
	"imageBatch/worker/rabbitmq"
	"imageBatch/worker/repository"
	"imageBatch/worker/service"
	"imageBatch/worker/storage"
)

type consumer interface {
	Close() error
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Worker Service failed", zap.Error(err))
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

	logger.Info("Worker Service starting",
		zap.String("queue", cfg.QueueBackend),
		zap.Int("workers", cfg.WorkerCount),
		zap.String("format", cfg.OutputFormat),
	)

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	conv, err := converter.NewConverter(converter.Options{
		Format:    cfg.OutputFormat,
		Quality:   cfg.OutputQuality,
		MaxWidth:  cfg.OutputMaxWidth,
		MaxHeight: cfg.OutputMaxHeight,
	}, logger)
	if err != nil {
		return err
	}

	processor := service.NewProcessor(
		repository.NewPostgresRepo(db),
		cache.NewStatusCache(redisClient),
		fetcher.New(cfg.FetchTimeout),
		conv,
		store,
		notifier.New(cfg.CallbackTimeout),
		service.Options{
			CompleteOnEmptyOutput: cfg.CompleteOnEmptyOutput,
			LockTTL:               cfg.LockTTL,
		},
		logger,
	)

	handle := func(ctx context.Context, msg *models.TaskMessage) error {
		result, err := processor.Process(ctx, msg)
		switch {
		case errors.Is(err, service.ErrInFlight), errors.Is(err, service.ErrDuplicateRun):
			logger.Info("Skipping duplicate delivery",
				zap.String("request_id", msg.RequestID),
				zap.Error(err),
			)
			return nil
		case errors.Is(err, service.ErrRequestNotFound):
			logger.Error("Dropping task for unknown request",
				zap.String("request_id", msg.RequestID),
				zap.String("trace_id", msg.TraceID),
			)
			return nil
		case err != nil:
			logger.Error("Task failed",
				zap.String("request_id", msg.RequestID),
				zap.String("trace_id", msg.TraceID),
				zap.Error(err),
			)
			return err
		}

		logger.Info("Task finished",
			zap.String("request_id", result.RequestID),
			zap.String("status", string(result.Status)),
			zap.String("csv_file", result.CSVFile),
		)
		return nil
	}

	workers := pool.NewWorkerPool(cfg.WorkerCount)

	var c consumer
	var consumeErr error
	if cfg.QueueBackend == config.QueueRabbitMQ {
		rc, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, cfg.RabbitMQQueue, cfg.WorkerCount, workers, logger)
		if err != nil {
			return err
		}
		c = rc
		consumeErr = rc.Consume(ctx, handle)
	} else {
		kc, err := kafka.NewConsumer(cfg.Brokers(), cfg.KafkaGroupID, cfg.KafkaTopic, workers, logger)
		if err != nil {
			return err
		}
		c = kc
		consumeErr = kc.Consume(ctx, handle)
	}

	logger.Info("Shutting down Worker Service")
	workers.Wait()
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close consumer", zap.Error(err))
	}
	return consumeErr
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.MinioEndpoint != "" {
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
	}
	return storage.NewLocalStore(cfg.OutputDir)
}
