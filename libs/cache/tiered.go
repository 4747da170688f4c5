package cache

import (
	"context"
	"time"
)

// Tiered reads L1 then L2. An L2 hit is copied into L1 with L1's own TTL.
// Writes and deletes go to both tiers. L2 may be nil.
type Tiered struct {
	l1 *Local
	l2 Cache
}

var _ Cache = (*Tiered)(nil)

func NewTiered(l1 *Local, l2 Cache) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

func (t *Tiered) Get(ctx context.Context, key string) (string, bool) {
	if v, ok := t.l1.Get(ctx, key); ok {
		return v, true
	}
	if t.l2 == nil {
		return "", false
	}
	v, ok := t.l2.Get(ctx, key)
	if !ok {
		return "", false
	}
	t.l1.Set(ctx, key, v, t.l1.TTL())
	return v, true
}

func (t *Tiered) Set(ctx context.Context, key, value string, ttl time.Duration) {
	t.l1.Set(ctx, key, value, ttl)
	if t.l2 != nil {
		t.l2.Set(ctx, key, value, ttl)
	}
}

func (t *Tiered) Delete(ctx context.Context, key string) {
	t.l1.Delete(ctx, key)
	if t.l2 != nil {
		t.l2.Delete(ctx, key)
	}
}

func (t *Tiered) Exists(ctx context.Context, key string) bool {
	if t.l1.Exists(ctx, key) {
		return true
	}
	return t.l2 != nil && t.l2.Exists(ctx, key)
}
