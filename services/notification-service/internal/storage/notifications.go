package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/db"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/inbox"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/model"
	"github.com/jackc/pgx/v5"
)

type NotificationRepository interface {
	Create(ctx context.Context, n model.Notification) (model.Notification, error)
	Get(ctx context.Context, id uuid.UUID) (model.Notification, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repository struct {
	db  db.DB
	now func() time.Time
}

var _ NotificationRepository = (*Repository)(nil)

func NewRepository(pool db.DB) *Repository {
	return &Repository{db: pool, now: time.Now}
}

const notificationColumns = `id, user_id, kind, title, message, is_read, created_at`

func scanNotification(row pgx.Row) (model.Notification, error) {
	var n model.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt)
	return n, err
}

// Create stores n as unread. A zero ID or CreatedAt is filled in.
func (r *Repository) Create(ctx context.Context, n model.Notification) (model.Notification, error) {
	n = r.prepare(n)
	if err := insertNotification(ctx, r.db, n); err != nil {
		return model.Notification{}, err
	}
	return n, nil
}

// CreateForEvent stores n and records eventID in the inbox in one
// transaction. When eventID was already recorded nothing is written and
// created is false.
func (r *Repository) CreateForEvent(ctx context.Context, eventID uuid.UUID, eventType string, n model.Notification) (model.Notification, bool, error) {
	n = r.prepare(n)
	created := false
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		fresh, err := inbox.NewRepository(tx).Record(ctx, eventID, eventType)
		if err != nil || !fresh {
			return err
		}
		if err := insertNotification(ctx, tx, n); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return model.Notification{}, false, apperr.FromDB("notifications.create_for_event", err)
	}
	if !created {
		return model.Notification{}, false, nil
	}
	return n, true, nil
}

func (r *Repository) prepare(n model.Notification) model.Notification {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now().UTC()
	}
	n.IsRead = false
	return n
}

func insertNotification(ctx context.Context, execer db.Execer, n model.Notification) error {
	_, err := execer.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.UserID, n.Kind, n.Title, n.Message, n.IsRead, n.CreatedAt)
	return apperr.FromDB("notifications.create", err)
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	n, err := scanNotification(r.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Notification{}, apperr.NotFound("notifications.get", "notification not found")
	}
	if err != nil {
		return model.Notification{}, apperr.FromDB("notifications.get", err)
	}
	return n, nil
}

// ListForUser returns one page of the user's notifications, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]model.Notification, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB("notifications.list", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, apperr.FromDB("notifications.list", err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0, page.Limit())
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, apperr.FromDB("notifications.list", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.FromDB("notifications.list", err)
	}
	return out, total, nil
}

func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return apperr.FromDB("notifications.mark_read", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notifications.mark_read", "notification not found")
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return apperr.FromDB("notifications.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notifications.delete", "notification not found")
	}
	return nil
}
