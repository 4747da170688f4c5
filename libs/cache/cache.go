// Package cache provides the read-cache tiers used by the repository
// decorators: an in-process Local tier, a shared Remote (Redis) tier and a
// Tiered composition of the two.
//
// Cache operations never return errors. A failing tier degrades to a miss
// or a no-op and the caller falls through to the primary store.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	// Set stores value under key. ttl is a hint; tiers with their own
	// expiry policy may ignore it.
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Exists(ctx context.Context, key string) bool
}

// GetJSON reads key and decodes it into T. A value that does not decode is
// treated as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var out T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, false
	}
	return out, true
}

func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, string(b), ttl)
}

// Options configures New.
type Options struct {
	MaxCapacity     int
	TTL             time.Duration
	TTI             time.Duration
	RemoteOpTimeout time.Duration
}

// New returns a Local cache, or a Tiered cache over Local and Remote when a
// Redis client is given.
func New(opts Options, rdb RedisClient, logger *slog.Logger) Cache {
	local := NewLocal(LocalConfig{
		MaxCapacity: opts.MaxCapacity,
		TTL:         opts.TTL,
		TTI:         opts.TTI,
	})
	if rdb == nil {
		logger.Info("cache: local tier only")
		return local
	}
	logger.Info("cache: local + redis tiers", "capacity", opts.MaxCapacity, "ttl", opts.TTL)
	remote := NewRemote(rdb, logger, RemoteConfig{OpTimeout: opts.RemoteOpTimeout})
	return NewTiered(local, remote)
}
