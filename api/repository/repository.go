package repository

import (
	"context"
	"errors"

	"imageBatch/api/models"
)

var (
	ErrRequestNotFound      = errors.New("request not found")
	ErrRequestAlreadyExists = errors.New("request already exists")
)

type Repository interface {
	// CreateBatch stores the request and all of its items as pending in a
	// single transaction.
	CreateBatch(ctx context.Context, req *models.Request) error
	GetStatus(ctx context.Context, requestID string) (models.RequestStatus, error)
}
