package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/outbox"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/posts-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	repo := NewPostgresRepository(mock, outbox.NewPostgresStore(mock))
	repo.now = func() time.Time { return time.Date(2024, 2, 2, 9, 0, 0, 0, time.UTC) }
	return repo, mock
}

func TestCreateWritesPostAndEventInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	author := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO posts").
		WithArgs(pgxmock.AnyArg(), author, "Hello", "body", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "post", pgxmock.AnyArg(), "post_created", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	p, err := repo.Create(context.Background(), model.Post{AuthorID: author, Title: "Hello", Content: "body"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, repo.now(), p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackWhenPostInsertFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO posts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "x", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), model.Post{AuthorID: uuid.New(), Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.NoError(t, mock.ExpectationsWereMet(), "no outbox insert and no commit")
}

func TestCreateRollsBackWhenOutboxInsertFails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO posts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "x", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "post", pgxmock.AnyArg(), "post_created", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("outbox unavailable"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), model.Post{AuthorID: uuid.New(), Title: "x"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM posts WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppendsEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, author := uuid.New(), uuid.New()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE posts").
		WithArgs(id, "New", "text", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "author_id", "title", "content", "created_at", "updated_at"}).
			AddRow(id, author, "New", "text", created, repo.now()))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "post", id, "post_updated", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	p, err := repo.Update(context.Background(), model.Post{ID: id, Title: "New", Content: "text"})
	require.NoError(t, err)
	assert.Equal(t, author, p.AuthorID)
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingPostRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE posts").
		WithArgs(id, "x", "", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), model.Post{ID: id, Title: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAppendsEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM posts").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow(uuid.New()))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "post", id, "post_deleted", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT count").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT (.+) FROM posts").WithArgs(2, 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "author_id", "title", "content", "created_at", "updated_at"}).
			AddRow(uuid.New(), uuid.New(), "third", "", now, now))

	posts, total, err := repo.List(context.Background(), pagination.Page{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "third", posts[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
