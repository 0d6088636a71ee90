package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const opTimeout = 2 * time.Second

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})
}

// Ping checks the server is reachable within opTimeout.
func Ping(ctx context.Context, rdb redis.Cmdable) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return rdb.Ping(ctx).Err()
}
