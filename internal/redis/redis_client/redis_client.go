package redis_client

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

// NewRedisClient connects to the instance backing the space-layout
// cache (the `layout:<spaceId>` keys written by the space service) and
// verifies it with a ping before anything depends on it.
func NewRedisClient(host string, port int) (*redis.Client, error) {
	poolSize := runtime.NumCPU() * 8
	if poolSize > 512 {
		poolSize = 512
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		zap.L().Error("redis_connect", zap.Error(err))
		return nil, fmt.Errorf("redis ping %s:%d: %w", host, port, err)
	}
	return rc, nil
}
