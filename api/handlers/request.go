package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"imageBatch/api/dto"
	"imageBatch/api/middleware"
	"imageBatch/api/validation"
)

const maxMemory = 32 << 20

type RequestService interface {
	Submit(ctx context.Context, traceID string, file io.Reader, callbackURL string) (*dto.UploadResponse, error)
	GetStatus(ctx context.Context, requestID string) (*dto.StatusResponse, error)
}

type RequestHandler struct {
	service     RequestService
	logger      *zap.Logger
	maxFileSize int64
}

func NewRequestHandler(service RequestService, logger *zap.Logger, maxFileSize int64) *RequestHandler {
	return &RequestHandler{
		service:     service,
		logger:      logger,
		maxFileSize: maxFileSize,
	}
}

func (h *RequestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+maxMemory)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		h.handleError(w, "Failed to parse form", "bad_request", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.handleError(w, "Failed to get file", "bad_request", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := validation.CheckUpload(header.Filename, header.Size, h.maxFileSize, file); err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	callbackURL := r.FormValue("webhook_url")

	resp, err := h.service.Submit(r.Context(), traceID, file, callbackURL)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.logger.Info("File uploaded",
		zap.String("trace_id", traceID),
		zap.String("request_id", resp.RequestID),
		zap.String("filename", header.Filename),
		zap.Int("items", resp.Items),
	)

	h.respondJSON(w, http.StatusAccepted, resp)
}

func (h *RequestHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	requestID := chi.URLParam(r, "requestID")
	if requestID == "" {
		h.handleError(w, "Request ID is required", "bad_request", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetStatus(r.Context(), requestID)
	if err != nil {
		h.handleServiceError(w, err, traceID)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *RequestHandler) handleServiceError(w http.ResponseWriter, err error, traceID string) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		h.handleError(w, verr.Error(), "validation_error", err, traceID, http.StatusBadRequest)
	case errors.Is(err, dto.ErrRequestNotFound):
		h.handleError(w, "Request ID not found", "not_found", err, traceID, http.StatusNotFound)
	default:
		h.handleError(w, "Internal server error", "internal", err, traceID, http.StatusInternalServerError)
	}
}

func (h *RequestHandler) handleError(w http.ResponseWriter, message, code string, err error, traceID string, status int) {
	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log(message,
		zap.String("trace_id", traceID),
		zap.Int("status", status),
		zap.Error(err),
	)

	h.respondJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: traceID,
	})
}

func (h *RequestHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
