package metadata

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Redis looks up a client's attribution blob (e.g. a user ID or display
// name) by a key fixed at construction time, keeping the same raw-bytes
// GetBytes/SetBytes convention the pubsub client used for cross-instance
// presence data. Every call reads the same key, so one instance yields the
// same blob for every update; cmd/yroomd builds a single process-wide
// instance over a fixed deployment-level key.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis returns a metadata provider that reads key from client on every
// call. A missing key yields empty metadata rather than an error.
func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

// Get implements the MetadataFunc signature expected by internal/ystore.
func (r *Redis) Get(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("metadata: redis get %q: %w", r.key, err)
	}
	return data, nil
}

// Set stores blob under the provider's key, for the caller to populate
// before the first store write (e.g. on client connect).
func (r *Redis) Set(ctx context.Context, blob []byte) error {
	if err := r.client.Set(ctx, r.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("metadata: redis set %q: %w", r.key, err)
	}
	return nil
}
