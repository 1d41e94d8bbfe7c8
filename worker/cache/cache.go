package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"imageBatch/worker/models"
)

// Key prefix is shared with the API status cache.
const (
	statusKeyPrefix = "request:status:"
	statusTTL       = 10 * time.Minute
	lockKeyPrefix   = "task:lock:"
)

// releaseScript deletes the lock only if it still holds this worker's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (c *StatusCache) SetStatus(ctx context.Context, requestID string, status models.Status) error {
	return c.client.Set(ctx, statusKeyPrefix+requestID, string(status), statusTTL).Err()
}

// Acquire takes the processing lease for a request. The returned release
// func is a no-op when the lease was not acquired.
func (c *StatusCache) Acquire(ctx context.Context, requestID string, ttl time.Duration) (bool, func(context.Context) error, error) {
	key := lockKeyPrefix + requestID
	token := uuid.New().String()

	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return false, func(context.Context) error { return nil }, err
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, c.client, []string{key}, token).Err()
	}
	return true, release, nil
}
