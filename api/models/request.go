package models

import (
	"time"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusCompleted RequestStatus = "completed"
	StatusFailed    RequestStatus = "failed"
)

// Request is one uploaded batch. Its items share RequestID.
type Request struct {
	RequestID   string
	Status      RequestStatus
	CallbackURL string
	ReportPath  string
	Items       []Item
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Item is one validated row of the uploaded file.
type Item struct {
	Position    int
	ProductName string
	InputURLs   []string
	OutputPaths []string
	Status      RequestStatus
}
