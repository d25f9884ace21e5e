package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultControllerKey is the Redis key naming the controlling version.
const DefaultControllerKey = "edge:controller"

// Controller records which cache version controls pages. The record is
// shared by every edge instance on the same Redis.
type Controller struct {
	redis *redis.Client
	key   string
}

// NewController creates a controller record on client.
func NewController(client *redis.Client, key string) *Controller {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultControllerKey
	}
	return &Controller{redis: client, key: key}
}

// Claim makes version the controlling version and returns the version that
// controlled before, or "" if none did.
func (c *Controller) Claim(ctx context.Context, version string) (string, error) {
	prev, err := c.redis.SetArgs(ctx, c.key, version, redis.SetArgs{Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("redis set controller: %w", err)
	}
	return prev, nil
}

// Current returns the controlling version, or "" if none.
func (c *Controller) Current(ctx context.Context) (string, error) {
	v, err := c.redis.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get controller: %w", err)
	}
	return v, nil
}
