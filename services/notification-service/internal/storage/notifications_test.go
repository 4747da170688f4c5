package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestCreateStoresUnread(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := uuid.New()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), user, "welcome", "Hi", "msg", false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := repo.Create(context.Background(), model.Notification{UserID: user, Kind: "welcome", Title: "Hi", Message: "msg", IsRead: true})
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateForEventRecordsInboxInSameTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)
	user, eventID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inbox_events").WithArgs(eventID, "post_created").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), user, "post_created", "t", "m", false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, created, err := repo.CreateForEvent(context.Background(), eventID, "post_created",
		model.Notification{UserID: user, Kind: "post_created", Title: "t", Message: "m"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, user, n.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateForEventSkipsSeenEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	eventID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inbox_events").WithArgs(eventID, "post_created").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	_, created, err := repo.CreateForEvent(context.Background(), eventID, "post_created",
		model.Notification{UserID: uuid.New(), Kind: "post_created"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet(), "no notification insert")
}

func TestCreateForEventInsertFailureRollsBackInbox(t *testing.T) {
	repo, mock := newMockRepo(t)
	eventID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inbox_events").WithArgs(eventID, "user_registered").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "welcome", "", "", false, pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, created, err := repo.CreateForEvent(context.Background(), eventID, "user_registered",
		model.Notification{UserID: uuid.New(), Kind: "welcome"})
	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet(), "inbox row must not be committed")
}

func TestGetMissingNotification(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM notifications WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForUser(t *testing.T) {
	repo, mock := newMockRepo(t)
	user := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT count").WithArgs(user).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(21)))
	mock.ExpectQuery("SELECT (.+) FROM notifications").WithArgs(user, 20, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "kind", "title", "message", "is_read", "created_at"}).
			AddRow(uuid.New(), user, "welcome", "t", "m", false, now))

	items, total, err := repo.ListForUser(context.Background(), user, pagination.Page{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 21, total)
	assert.Len(t, items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadAndDeleteReportMissingRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE notifications SET is_read").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.MarkRead(context.Background(), id), apperr.ErrNotFound)

	mock.ExpectExec("DELETE FROM notifications").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	assert.NoError(t, repo.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
