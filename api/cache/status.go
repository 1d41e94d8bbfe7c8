package cache

import (
	"context"
	"fmt"
	"time"

	"imageBatch/api/models"
)

// Key layout is shared with the worker, which overwrites the entry once a
// request completes.
const (
	statusKeyPrefix = "request:status:"
	statusTTL       = 10 * time.Minute
)

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type StatusCache struct {
	store Store
}

func NewStatusCache(store Store) *StatusCache {
	return &StatusCache{store: store}
}

func (sc *StatusCache) Get(ctx context.Context, requestID string) (models.RequestStatus, error) {
	data, err := sc.store.Get(ctx, statusKey(requestID))
	if err != nil {
		return "", err
	}
	return models.RequestStatus(data), nil
}

func (sc *StatusCache) Set(ctx context.Context, requestID string, status models.RequestStatus) error {
	return sc.store.Set(ctx, statusKey(requestID), string(status), statusTTL)
}

func statusKey(requestID string) string {
	return fmt.Sprintf("%s%s", statusKeyPrefix, requestID)
}
