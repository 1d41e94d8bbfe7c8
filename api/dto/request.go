package dto

import "errors"

var ErrRequestNotFound = errors.New("request not found")

type UploadResponse struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
	Items     int    `json:"items"`
}

type StatusResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// TaskMessage is the payload handed to the worker queue.
type TaskMessage struct {
	RequestID   string `json:"request_id"`
	TraceID     string `json:"trace_id"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
