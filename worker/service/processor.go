package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imageBatch/worker/models"
	"imageBatch/worker/report"
	"imageBatch/worker/repository"
	"imageBatch/worker/storage"
)

var (
	ErrRequestNotFound = errors.New("invalid request id")
	ErrInFlight        = errors.New("request is already being processed")
	ErrDuplicateRun    = errors.New("request already processed")
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Converter interface {
	Convert(r io.Reader) ([]byte, error)
	Extension() string
	ContentType() string
}

type Notifier interface {
	Notify(ctx context.Context, url string, result *models.TaskResult) error
}

type StatusCache interface {
	SetStatus(ctx context.Context, requestID string, status models.Status) error
	Acquire(ctx context.Context, requestID string, ttl time.Duration) (bool, func(context.Context) error, error)
}

type Options struct {
	// CompleteOnEmptyOutput marks items whose URLs all failed as completed.
	// When false such items are marked failed.
	CompleteOnEmptyOutput bool
	LockTTL               time.Duration
}

type Processor struct {
	repo      repository.Repository
	cache     StatusCache
	fetcher   Fetcher
	converter Converter
	store     storage.Store
	notifier  Notifier
	opts      Options
	logger    *zap.Logger
}

func NewProcessor(
	repo repository.Repository,
	cache StatusCache,
	fetcher Fetcher,
	converter Converter,
	store storage.Store,
	notifier Notifier,
	opts Options,
	logger *zap.Logger,
) *Processor {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	return &Processor{
		repo:      repo,
		cache:     cache,
		fetcher:   fetcher,
		converter: converter,
		store:     store,
		notifier:  notifier,
		opts:      opts,
		logger:    logger,
	}
}

// Process runs one request end to end: transform every item, commit all
// results in one write, build the report, then notify the callback. A
// duplicate delivery returns ErrInFlight or ErrDuplicateRun without touching
// stored results.
func (p *Processor) Process(ctx context.Context, msg *models.TaskMessage) (*models.TaskResult, error) {
	logger := p.logger.With(
		zap.String("request_id", msg.RequestID),
		zap.String("trace_id", msg.TraceID),
	)

	acquired, release, err := p.cache.Acquire(ctx, msg.RequestID, p.opts.LockTTL)
	if err != nil {
		logger.Warn("Processing lease unavailable, continuing without it", zap.Error(err))
	} else if !acquired {
		return nil, ErrInFlight
	}
	if release != nil {
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Failed to release processing lease", zap.Error(err))
			}
		}()
	}

	items, err := p.repo.FindByRequestID(ctx, msg.RequestID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrRequestNotFound
	}
	if items[0].Status != models.StatusPending {
		return nil, ErrDuplicateRun
	}

	logger.Info("Processing request", zap.Int("items", len(items)))

	results := make([]models.ItemResult, 0, len(items))
	for _, item := range items {
		results = append(results, p.processItem(ctx, logger, item))
	}

	// A canceled run skipped its remaining URLs; leave the request pending
	// so redelivery processes it in full.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.repo.CommitResults(ctx, msg.RequestID, results); err != nil {
		if errors.Is(err, repository.ErrAlreadyCommitted) {
			return nil, ErrDuplicateRun
		}
		return nil, fmt.Errorf("commit results: %w", err)
	}

	// Past the commit a redelivery is a duplicate, so the report and callback
	// must not be dropped on cancellation.
	ctx = context.WithoutCancel(ctx)

	if err := p.cache.SetStatus(ctx, msg.RequestID, models.StatusCompleted); err != nil {
		logger.Warn("Failed to update status cache", zap.Error(err))
	}

	reportPath, err := p.writeReport(ctx, msg.RequestID, results)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	result := &models.TaskResult{
		RequestID: msg.RequestID,
		Status:    models.StatusCompleted,
		CSVFile:   reportPath,
	}

	if msg.CallbackURL != "" {
		if err := p.notifier.Notify(ctx, msg.CallbackURL, result); err != nil {
			logger.Warn("Webhook call failed",
				zap.String("callback_url", msg.CallbackURL),
				zap.Error(err),
			)
		}
	}

	logger.Info("Request completed", zap.String("csv_file", reportPath))
	return result, nil
}

func (p *Processor) processItem(ctx context.Context, logger *zap.Logger, item models.Item) models.ItemResult {
	outputs := make([]string, 0, len(item.InputURLs))
	for _, url := range item.InputURLs {
		res := p.transformURL(ctx, url)
		if !res.OK() {
			logger.Warn("Error processing image",
				zap.String("product", item.ProductName),
				zap.String("url", url),
				zap.Error(res.Err),
			)
			continue
		}
		outputs = append(outputs, res.Output)
	}

	status := models.StatusCompleted
	if len(outputs) == 0 && !p.opts.CompleteOnEmptyOutput {
		status = models.StatusFailed
	}

	return models.ItemResult{
		Position:    item.Position,
		ProductName: item.ProductName,
		InputURLs:   item.InputURLs,
		OutputPaths: outputs,
		Status:      status,
	}
}

func (p *Processor) transformURL(ctx context.Context, url string) models.URLResult {
	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return models.URLResult{URL: url, Err: err}
	}

	converted, err := p.converter.Convert(bytes.NewReader(data))
	if err != nil {
		return models.URLResult{URL: url, Err: err}
	}

	name := uuid.New().String() + "." + p.converter.Extension()
	path, err := p.store.Save(ctx, name, converted, p.converter.ContentType())
	if err != nil {
		return models.URLResult{URL: url, Err: err}
	}

	return models.URLResult{URL: url, Output: path}
}

func (p *Processor) writeReport(ctx context.Context, requestID string, results []models.ItemResult) (string, error) {
	data, err := report.Build(results)
	if err != nil {
		return "", err
	}

	path, err := p.store.Save(ctx, report.FileName(requestID), data, report.ContentType)
	if err != nil {
		return "", err
	}

	if err := p.repo.SetReportPath(ctx, requestID, path); err != nil {
		p.logger.Warn("Failed to record report path",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}

	return path, nil
}
