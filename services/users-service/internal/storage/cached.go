package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/cache"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/users-service/internal/model"
)

func userKey(id uuid.UUID) string { return "user:" + id.String() }
func usernameKey(username string) string { return "user:name:" + username }

// CachedUserRepository caches users by id and keeps a secondary
// username -> id entry. The secondary entry is only trusted when the user it
// points at still carries that username.
type CachedUserRepository struct {
	inner UserRepository
	cache cache.Cache
	ttl   time.Duration
}

var _ UserRepository = (*CachedUserRepository)(nil)

func NewCachedUserRepository(inner UserRepository, c cache.Cache, ttl time.Duration) *CachedUserRepository {
	return &CachedUserRepository{inner: inner, cache: c, ttl: ttl}
}

func (r *CachedUserRepository) store(ctx context.Context, u model.User) {
	cache.SetJSON(ctx, r.cache, userKey(u.ID), u, r.ttl)
	r.cache.Set(ctx, usernameKey(u.Username), u.ID.String(), r.ttl)
}

func (r *CachedUserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	created, err := r.inner.Create(ctx, u)
	if err != nil {
		return model.User{}, err
	}
	r.store(ctx, created)
	return created, nil
}

func (r *CachedUserRepository) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	if u, ok := cache.GetJSON[model.User](ctx, r.cache, userKey(id)); ok {
		return u, nil
	}
	u, err := r.inner.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	r.store(ctx, u)
	return u, nil
}

func (r *CachedUserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	if raw, ok := r.cache.Get(ctx, usernameKey(username)); ok {
		if id, err := uuid.Parse(raw); err == nil {
			if u, ok := cache.GetJSON[model.User](ctx, r.cache, userKey(id)); ok && u.Username == username {
				return u, nil
			}
		}
		r.cache.Delete(ctx, usernameKey(username))
	}
	u, err := r.inner.GetByUsername(ctx, username)
	if err != nil {
		return model.User{}, err
	}
	r.store(ctx, u)
	return u, nil
}

// Update refreshes both keys and drops the username key of the previous
// value when the username changed.
func (r *CachedUserRepository) Update(ctx context.Context, u model.User) (model.User, error) {
	prev, hadPrev := cache.GetJSON[model.User](ctx, r.cache, userKey(u.ID))
	updated, err := r.inner.Update(ctx, u)
	if err != nil {
		return model.User{}, err
	}
	if hadPrev && prev.Username != updated.Username {
		r.cache.Delete(ctx, usernameKey(prev.Username))
	}
	r.store(ctx, updated)
	return updated, nil
}

func (r *CachedUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	prev, hadPrev := cache.GetJSON[model.User](ctx, r.cache, userKey(id))
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.cache.Delete(ctx, userKey(id))
	if hadPrev {
		r.cache.Delete(ctx, usernameKey(prev.Username))
	}
	return nil
}

func (r *CachedUserRepository) List(ctx context.Context, page pagination.Page) ([]model.User, int64, error) {
	return r.inner.List(ctx, page)
}
