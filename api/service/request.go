package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"imageBatch/api/dto"
	"imageBatch/api/models"
	"imageBatch/api/repository"
	"imageBatch/api/validation"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, message *dto.TaskMessage) error
}

type StatusCache interface {
	Get(ctx context.Context, requestID string) (models.RequestStatus, error)
	Set(ctx context.Context, requestID string, status models.RequestStatus) error
}

type RequestService struct {
	repo       repository.Repository
	cache      StatusCache
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewRequestService(repo repository.Repository, cache StatusCache, dispatcher Dispatcher, logger *zap.Logger) *RequestService {
	return &RequestService{
		repo:       repo,
		cache:      cache,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Submit validates an uploaded batch, stores it as pending and hands the
// request to the worker queue. Validation errors are returned before anything
// is written.
func (s *RequestService) Submit(ctx context.Context, traceID string, file io.Reader, callbackURL string) (*dto.UploadResponse, error) {
	if err := validation.ValidateCallbackURL(callbackURL); err != nil {
		return nil, err
	}

	batch, err := validation.ParseBatch(file)
	if err != nil {
		return nil, err
	}

	req := &models.Request{
		RequestID:   batch.RequestID,
		Status:      models.StatusPending,
		CallbackURL: callbackURL,
		Items:       batch.Items,
	}

	if err := s.repo.CreateBatch(ctx, req); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	if err := s.cache.Set(ctx, req.RequestID, models.StatusPending); err != nil {
		s.logger.Warn("Failed to cache request status",
			zap.String("trace_id", traceID),
			zap.String("request_id", req.RequestID),
			zap.Error(err),
		)
	}

	msg := &dto.TaskMessage{
		RequestID:   req.RequestID,
		TraceID:     traceID,
		CallbackURL: callbackURL,
	}
	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		return nil, fmt.Errorf("dispatch request %s: %w", req.RequestID, err)
	}

	s.logger.Info("Request dispatched",
		zap.String("trace_id", traceID),
		zap.String("request_id", req.RequestID),
		zap.Int("items", len(req.Items)),
	)

	return &dto.UploadResponse{
		RequestID: req.RequestID,
		Message:   "File uploaded successfully",
		Items:     len(req.Items),
	}, nil
}

func (s *RequestService) GetStatus(ctx context.Context, requestID string) (*dto.StatusResponse, error) {
	status, err := s.cache.Get(ctx, requestID)
	if err == nil && status != "" {
		return &dto.StatusResponse{RequestID: requestID, Status: string(status)}, nil
	}

	status, err = s.repo.GetStatus(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, dto.ErrRequestNotFound
		}
		return nil, err
	}

	// Only final statuses are cached here. A pending read can race the
	// worker's completed write and would otherwise overwrite it.
	if status != models.StatusPending {
		if err := s.cache.Set(ctx, requestID, status); err != nil {
			s.logger.Warn("Failed to cache request status",
				zap.String("request_id", requestID),
				zap.Error(err),
			)
		}
	}

	return &dto.StatusResponse{RequestID: requestID, Status: string(status)}, nil
}
