package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/cache"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/users-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	users      map[uuid.UUID]model.User
	primaryHit int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{users: map[uuid.UUID]model.User{}} }

func (f *fakeRepo) Create(_ context.Context, u model.User) (model.User, error) {
	u.ID = uuid.New()
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) Get(_ context.Context, id uuid.UUID) (model.User, error) {
	f.primaryHit++
	u, ok := f.users[id]
	if !ok {
		return model.User{}, apperr.NotFound("fake", "user not found")
	}
	return u, nil
}

func (f *fakeRepo) GetByUsername(_ context.Context, username string) (model.User, error) {
	f.primaryHit++
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, apperr.NotFound("fake", "user not found")
}

func (f *fakeRepo) Update(_ context.Context, u model.User) (model.User, error) {
	if _, ok := f.users[u.ID]; !ok {
		return model.User{}, apperr.NotFound("fake", "user not found")
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.users, id)
	return nil
}

func (f *fakeRepo) List(context.Context, pagination.Page) ([]model.User, int64, error) {
	return nil, 0, nil
}

func newCached(t *testing.T) (*CachedUserRepository, *fakeRepo, *cache.Local) {
	t.Helper()
	local := cache.NewLocal(cache.LocalConfig{MaxCapacity: 100})
	t.Cleanup(local.Close)
	inner := newFakeRepo()
	return NewCachedUserRepository(inner, local, 0), inner, local
}

func TestCachedGetByUsernameUsesSecondaryKey(t *testing.T) {
	ctx := context.Background()
	repo, inner, local := newCached(t)

	created, err := repo.Create(ctx, model.User{Email: "ada@example.com", Username: "ada"})
	require.NoError(t, err)

	raw, ok := local.Get(ctx, "user:name:ada")
	require.True(t, ok)
	assert.Equal(t, created.ID.String(), raw)

	got, err := repo.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Zero(t, inner.primaryHit)
}

func TestCachedRenameEvictsOldUsername(t *testing.T) {
	ctx := context.Background()
	repo, _, local := newCached(t)

	u, err := repo.Create(ctx, model.User{Email: "ada@example.com", Username: "ada"})
	require.NoError(t, err)

	u.Username = "lovelace"
	_, err = repo.Update(ctx, u)
	require.NoError(t, err)

	assert.False(t, local.Exists(ctx, "user:name:ada"))
	assert.True(t, local.Exists(ctx, "user:name:lovelace"))

	_, err = repo.GetByUsername(ctx, "ada")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCachedStaleUsernameKeyFallsThrough(t *testing.T) {
	ctx := context.Background()
	repo, inner, local := newCached(t)

	u, err := inner.Create(ctx, model.User{Email: "a@example.com", Username: "grace"})
	require.NoError(t, err)
	cache.SetJSON(ctx, local, "user:"+u.ID.String(), model.User{ID: u.ID, Username: "someone-else"}, 0)
	local.Set(ctx, "user:name:grace", u.ID.String(), 0)

	got, err := repo.GetByUsername(ctx, "grace")
	require.NoError(t, err)
	assert.Equal(t, "grace", got.Username)
	assert.Equal(t, 1, inner.primaryHit)
}

func TestCachedDeleteEvictsBothKeys(t *testing.T) {
	ctx := context.Background()
	repo, _, local := newCached(t)

	u, err := repo.Create(ctx, model.User{Email: "x@example.com", Username: "x"})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, u.ID))

	assert.False(t, local.Exists(ctx, "user:"+u.ID.String()))
	assert.False(t, local.Exists(ctx, "user:name:x"))
}
