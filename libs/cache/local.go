package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	DefaultMaxCapacity = 10000
	DefaultTTL         = 5 * time.Minute
	DefaultTTI         = time.Minute
)

type LocalConfig struct {
	MaxCapacity int
	// TTL bounds the age of an entry since it was written.
	TTL time.Duration
	// TTI bounds the time since an entry was last read or written.
	TTI time.Duration
	Now func() time.Time
}

type localEntry struct {
	value      string
	writtenAt  time.Time
	lastAccess atomic.Int64
}

// Local is the in-process tier. ttlcache bounds the entry count with LRU
// eviction and reclaims old entries in the background; expiry decisions are
// made against Now so they can be tested with a simulated clock.
type Local struct {
	// mu orders writes against expiry eviction; reads do not take it.
	mu    sync.Mutex
	items *ttlcache.Cache[string, *localEntry]
	ttl   time.Duration
	tti   time.Duration
	now   func() time.Time
}

var _ Cache = (*Local)(nil)

func NewLocal(cfg LocalConfig) *Local {
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = DefaultMaxCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTI <= 0 {
		cfg.TTI = DefaultTTI
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	items := ttlcache.New[string, *localEntry](
		ttlcache.WithTTL[string, *localEntry](cfg.TTL),
		ttlcache.WithCapacity[string, *localEntry](uint64(cfg.MaxCapacity)),
		ttlcache.WithDisableTouchOnHit[string, *localEntry](),
	)
	go items.Start()

	return &Local{items: items, ttl: cfg.TTL, tti: cfg.TTI, now: cfg.Now}
}

// TTL is the lifetime of an entry written to this tier.
func (l *Local) TTL() time.Duration { return l.ttl }

func (l *Local) Get(_ context.Context, key string) (string, bool) {
	e, ok := l.live(key)
	if !ok {
		return "", false
	}
	e.lastAccess.Store(l.now().UnixNano())
	return e.value, true
}

// Set ignores ttl; entries always live for the tier's own TTL.
func (l *Local) Set(_ context.Context, key, value string, _ time.Duration) {
	now := l.now()
	e := &localEntry{value: value, writtenAt: now}
	e.lastAccess.Store(now.UnixNano())
	l.mu.Lock()
	l.items.Set(key, e, ttlcache.DefaultTTL)
	l.mu.Unlock()
}

func (l *Local) Delete(_ context.Context, key string) {
	l.mu.Lock()
	l.items.Delete(key)
	l.mu.Unlock()
}

func (l *Local) Exists(_ context.Context, key string) bool {
	_, ok := l.live(key)
	return ok
}

func (l *Local) Len() int { return l.items.Len() }

// Close stops the background reclamation goroutine.
func (l *Local) Close() { l.items.Stop() }

func (l *Local) live(key string) (*localEntry, bool) {
	item := l.items.Get(key)
	if item == nil {
		return nil, false
	}
	e := item.Value()
	now := l.now()
	if now.Sub(e.writtenAt) >= l.ttl || now.Sub(time.Unix(0, e.lastAccess.Load())) >= l.tti {
		l.evict(key, e)
		return nil, false
	}
	return e, true
}

// evict removes key only while it still holds e, so a value written after
// e was found expired survives.
func (l *Local) evict(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur := l.items.Get(key); cur != nil && cur.Value() == e {
		l.items.Delete(key)
	}
}
