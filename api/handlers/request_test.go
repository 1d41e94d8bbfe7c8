package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"imageBatch/api/dto"
	"imageBatch/api/middleware"
	"imageBatch/api/models"
	"imageBatch/api/validation"
)

type mockRequestService struct {
	submitFunc    func(ctx context.Context, traceID string, file io.Reader, callbackURL string) (*dto.UploadResponse, error)
	getStatusFunc func(ctx context.Context, requestID string) (*dto.StatusResponse, error)
}

func (m *mockRequestService) Submit(ctx context.Context, traceID string, file io.Reader, callbackURL string) (*dto.UploadResponse, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, traceID, file, callbackURL)
	}
	return &dto.UploadResponse{
		RequestID: uuid.New().String(),
		Message:   "File uploaded successfully",
		Items:     1,
	}, nil
}

func (m *mockRequestService) GetStatus(ctx context.Context, requestID string) (*dto.StatusResponse, error) {
	if m.getStatusFunc != nil {
		return m.getStatusFunc(ctx, requestID)
	}
	return &dto.StatusResponse{
		RequestID: requestID,
		Status:    string(models.StatusCompleted),
	}, nil
}

const testCSV = "S. No.,Product Name,Input Image Urls\n1,Shoe,http://a/1.jpg\n"

func newUploadRequest(t *testing.T, filename string, content []byte, webhookURL string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}

	if webhookURL != "" {
		if err := writer.WriteField("webhook_url", webhookURL); err != nil {
			t.Fatalf("Failed to write webhook field: %v", err)
		}
	}

	writer.Close()

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestRequestHandler_Upload_Success(t *testing.T) {
	logger := zaptest.NewLogger(t)

	var gotBody, gotCallback string
	mockService := &mockRequestService{
		submitFunc: func(ctx context.Context, traceID string, file io.Reader, callbackURL string) (*dto.UploadResponse, error) {
			data, _ := io.ReadAll(file)
			gotBody = string(data)
			gotCallback = callbackURL
			return &dto.UploadResponse{RequestID: "req-1", Message: "File uploaded successfully", Items: 1}, nil
		},
	}
	router := NewRouter(NewRequestHandler(mockService, logger, 1<<20), logger)

	req := newUploadRequest(t, "batch.csv", []byte(testCSV), "http://hooks.local/done")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var resp dto.UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.RequestID != "req-1" {
		t.Errorf("Expected request_id req-1, got %s", resp.RequestID)
	}
	if gotBody != testCSV {
		t.Errorf("Service received unexpected file content: %q", gotBody)
	}
	if gotCallback != "http://hooks.local/done" {
		t.Errorf("Expected webhook_url to be forwarded, got %q", gotCallback)
	}
	if rec.Header().Get(middleware.TraceIDHeader) == "" {
		t.Error("Expected trace id header on response")
	}
}

func TestRequestHandler_Upload_NoFile(t *testing.T) {
	logger := zaptest.NewLogger(t)
	handler := NewRequestHandler(&mockRequestService{}, logger, 1<<20)

	req := httptest.NewRequest("POST", "/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data")
	req = req.WithContext(middleware.WithTraceID(req.Context(), uuid.New().String()))

	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestRequestHandler_Upload_NotCSV(t *testing.T) {
	logger := zaptest.NewLogger(t)
	called := false
	mockService := &mockRequestService{
		submitFunc: func(ctx context.Context, traceID string, file io.Reader, callbackURL string) (*dto.UploadResponse, error) {
			called = true
			return nil, nil
		},
	}
	handler := NewRequestHandler(mockService, logger, 1<<20)

	req := newUploadRequest(t, "photo.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "")
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
	if called {
		t.Error("Service must not be called for a non-CSV upload")
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Code != "validation_error" {
		t.Errorf("Expected code validation_error, got %s", resp.Code)
	}
}

func TestRequestHandler_Upload_ValidationError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mockService := &mockRequestService{
		submitFunc: func(ctx context.Context, traceID string, file io.Reader, callbackURL string) (*dto.UploadResponse, error) {
			_, err := validation.ParseBatch(strings.NewReader("wrong,header\n"))
			return nil, err
		},
	}
	handler := NewRequestHandler(mockService, logger, 1<<20)

	req := newUploadRequest(t, "batch.csv", []byte("wrong,header\n"), "")
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "Input Image Urls") {
		t.Errorf("Expected error to name the expected header, got %q", resp.Error)
	}
}

func TestRequestHandler_Upload_InternalError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mockService := &mockRequestService{
		submitFunc: func(ctx context.Context, traceID string, file io.Reader, callbackURL string) (*dto.UploadResponse, error) {
			return nil, errors.New("database unavailable")
		},
	}
	handler := NewRequestHandler(mockService, logger, 1<<20)

	req := newUploadRequest(t, "batch.csv", []byte(testCSV), "")
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "database unavailable") {
		t.Error("Internal error details must not leak to the client")
	}
}

func TestRequestHandler_Status_Success(t *testing.T) {
	logger := zaptest.NewLogger(t)
	requestID := uuid.New().String()

	mockService := &mockRequestService{
		getStatusFunc: func(ctx context.Context, id string) (*dto.StatusResponse, error) {
			if id != requestID {
				t.Errorf("Expected request id %s, got %s", requestID, id)
			}
			return &dto.StatusResponse{RequestID: id, Status: string(models.StatusPending)}, nil
		},
	}
	router := NewRouter(NewRequestHandler(mockService, logger, 1<<20), logger)

	req := httptest.NewRequest("GET", "/status/"+requestID, nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp dto.StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "pending" {
		t.Errorf("Expected status pending, got %s", resp.Status)
	}
}

func TestRequestHandler_Status_NotFound(t *testing.T) {
	logger := zaptest.NewLogger(t)
	mockService := &mockRequestService{
		getStatusFunc: func(ctx context.Context, id string) (*dto.StatusResponse, error) {
			return nil, dto.ErrRequestNotFound
		},
	}
	router := NewRouter(NewRequestHandler(mockService, logger, 1<<20), logger)

	req := httptest.NewRequest("GET", "/status/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != "Request ID not found" {
		t.Errorf("Unexpected error message %q", resp.Error)
	}
}

func TestRequestHandler_Status_EmptyRequestID(t *testing.T) {
	logger := zaptest.NewLogger(t)
	handler := NewRequestHandler(&mockRequestService{}, logger, 1<<20)

	req := httptest.NewRequest("GET", "/status/", nil)
	rec := httptest.NewRecorder()

	handler.Status(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestRouter_Health(t *testing.T) {
	logger := zaptest.NewLogger(t)
	router := NewRouter(NewRequestHandler(&mockRequestService{}, logger, 1<<20), logger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}
