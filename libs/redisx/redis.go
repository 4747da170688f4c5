// Package redisx opens the shared Redis client and builds the pieces that
// sit on it: readiness checks and the outbox poll lock.
package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/redis/go-redis/v9"
)

// Open parses a redis:// URL and pings the server. An empty URL returns
// (nil, nil) so callers can treat Redis as optional.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperr.InvalidConfiguration("redisx.open", fmt.Errorf("REDIS_URL: %w", err))
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
