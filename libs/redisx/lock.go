package redisx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotHeld = errors.New("redisx: lock not held or already expired")

// Locker is a single named redsync mutex acquired with one attempt. It
// satisfies outbox.Locker.
type Locker struct {
	rs     *redsync.Redsync
	key    string
	expiry time.Duration
}

func NewLocker(rdb redis.UniversalClient, key string, expiry time.Duration) *Locker {
	if expiry <= 0 {
		expiry = 30 * time.Second
	}
	return &Locker{
		rs:     redsync.New(goredis.NewPool(rdb)),
		key:    key,
		expiry: expiry,
	}
}

// TryLock returns ok=false without an error when another holder has the
// lock.
func (l *Locker) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	mutex := l.rs.NewMutex(l.key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if isContention(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}

	release := func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			return fmt.Errorf("release %s: %w", l.key, err)
		}
		if !ok {
			return ErrLockNotHeld
		}
		return nil
	}
	return release, true, nil
}

func isContention(err error) bool {
	var taken *redsync.ErrTaken
	if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "lock already taken") || strings.Contains(msg, "failed to acquire lock")
}
