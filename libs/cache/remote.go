package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// RedisClient is the subset of go-redis used by Remote. *redis.Client and
// *redis.ClusterClient satisfy it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

type RemoteConfig struct {
	OpTimeout time.Duration
	// DefaultTTL applies when Set is called with ttl <= 0.
	DefaultTTL time.Duration
	// Breaker settings; zero values use the defaults below.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Remote is the shared Redis tier. Every call is bounded by OpTimeout and
// guarded by a circuit breaker; failures are logged and reported as a miss.
type Remote struct {
	rdb        RedisClient
	logger     *slog.Logger
	breaker    *gobreaker.CircuitBreaker
	opTimeout  time.Duration
	defaultTTL time.Duration
}

var _ Cache = (*Remote)(nil)

func NewRemote(rdb RedisClient, logger *slog.Logger, cfg RemoteConfig) *Remote {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-redis",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Remote{
		rdb:        rdb,
		logger:     logger,
		breaker:    breaker,
		opTimeout:  cfg.OpTimeout,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (r *Remote) do(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	res, err := r.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
		return fn(opCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.logger.Debug("cache redis skipped", "op", op, "err", err)
		} else {
			r.logger.Warn("cache redis failed", "op", op, "err", err)
		}
	}
	return res, err
}

func (r *Remote) Get(ctx context.Context, key string) (string, bool) {
	res, err := r.do(ctx, "get", func(ctx context.Context) (any, error) {
		v, err := r.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// a miss is a successful call for the breaker
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil || res == nil {
		return "", false
	}
	return res.(string), true
}

func (r *Remote) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	_, _ = r.do(ctx, "set", func(ctx context.Context) (any, error) {
		return nil, r.rdb.Set(ctx, key, value, ttl).Err()
	})
}

func (r *Remote) Delete(ctx context.Context, key string) {
	_, _ = r.do(ctx, "del", func(ctx context.Context) (any, error) {
		return nil, r.rdb.Del(ctx, key).Err()
	})
}

func (r *Remote) Exists(ctx context.Context, key string) bool {
	res, err := r.do(ctx, "exists", func(ctx context.Context) (any, error) {
		return r.rdb.Exists(ctx, key).Result()
	})
	if err != nil {
		return false
	}
	n, _ := res.(int64)
	return n > 0
}

// State reports the breaker state, for readiness output and tests.
func (r *Remote) State() gobreaker.State { return r.breaker.State() }
