package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/cache"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/posts-service/internal/model"
)

func postKey(id uuid.UUID) string { return "post:" + id.String() }

// CachedPostRepository is cache-aside over another PostRepository. Writes go
// to the primary first; the cache is only touched after the primary
// succeeded. Lists are never cached.
type CachedPostRepository struct {
	inner PostRepository
	cache cache.Cache
	ttl   time.Duration
}

var _ PostRepository = (*CachedPostRepository)(nil)

func NewCachedPostRepository(inner PostRepository, c cache.Cache, ttl time.Duration) *CachedPostRepository {
	return &CachedPostRepository{inner: inner, cache: c, ttl: ttl}
}

func (r *CachedPostRepository) Create(ctx context.Context, p model.Post) (model.Post, error) {
	created, err := r.inner.Create(ctx, p)
	if err != nil {
		return model.Post{}, err
	}
	cache.SetJSON(ctx, r.cache, postKey(created.ID), created, r.ttl)
	return created, nil
}

func (r *CachedPostRepository) Get(ctx context.Context, id uuid.UUID) (model.Post, error) {
	if p, ok := cache.GetJSON[model.Post](ctx, r.cache, postKey(id)); ok {
		return p, nil
	}
	p, err := r.inner.Get(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	cache.SetJSON(ctx, r.cache, postKey(id), p, r.ttl)
	return p, nil
}

func (r *CachedPostRepository) Update(ctx context.Context, p model.Post) (model.Post, error) {
	updated, err := r.inner.Update(ctx, p)
	if err != nil {
		return model.Post{}, err
	}
	cache.SetJSON(ctx, r.cache, postKey(updated.ID), updated, r.ttl)
	return updated, nil
}

func (r *CachedPostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.cache.Delete(ctx, postKey(id))
	return nil
}

func (r *CachedPostRepository) List(ctx context.Context, page pagination.Page) ([]model.Post, int64, error) {
	return r.inner.List(ctx, page)
}
