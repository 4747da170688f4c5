package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/db"
	"github.com/inkwell-labs/inkwell/libs/outbox"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/users-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	Get(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	Update(ctx context.Context, u model.User) (model.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page pagination.Page) ([]model.User, int64, error)
}

type OutboxWriter interface {
	Append(ctx context.Context, tx db.Execer, evt outbox.Event) (outbox.Record, error)
}

type PostgresRepository struct {
	db     db.DB
	outbox OutboxWriter
	now    func() time.Time
}

var _ UserRepository = (*PostgresRepository)(nil)

func NewPostgresRepository(pool db.DB, ob OutboxWriter) *PostgresRepository {
	return &PostgresRepository{db: pool, outbox: ob, now: time.Now}
}

const userColumns = `id, email, username, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create registers the user and appends user_registered in the same
// transaction. A taken email or username is a conflict.
func (r *PostgresRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := r.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, username, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, u.ID, u.Email, u.Username, u.CreatedAt, u.UpdatedAt)
		if err != nil {
			return classify("users.create", err)
		}
		_, err = r.outbox.Append(ctx, tx, outbox.Event{
			AggregateType: model.AggregateType,
			AggregateID:   u.ID,
			EventType:     model.EventUserRegistered,
			Payload:       model.UserEvent{UserID: u.ID, Username: u.Username, Email: u.Email},
		})
		return err
	})
	if err != nil {
		return model.User{}, apperr.FromDB("users.create", err)
	}
	return u, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return model.User{}, classify("users.get", err)
	}
	return u, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return model.User{}, classify("users.get_by_username", err)
	}
	return u, nil
}

func (r *PostgresRepository) Update(ctx context.Context, u model.User) (model.User, error) {
	var out model.User
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		out, err = scanUser(tx.QueryRow(ctx, `
			UPDATE users SET email = $2, username = $3, updated_at = $4
			WHERE id = $1
			RETURNING `+userColumns,
			u.ID, u.Email, u.Username, r.now().UTC()))
		if err != nil {
			return classify("users.update", err)
		}
		_, err = r.outbox.Append(ctx, tx, outbox.Event{
			AggregateType: model.AggregateType,
			AggregateID:   out.ID,
			EventType:     model.EventUserUpdated,
			Payload:       model.UserEvent{UserID: out.ID, Username: out.Username, Email: out.Email},
		})
		return err
	})
	if err != nil {
		return model.User{}, apperr.FromDB("users.update", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var username string
		if err := tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING username`, id).Scan(&username); err != nil {
			return classify("users.delete", err)
		}
		_, err := r.outbox.Append(ctx, tx, outbox.Event{
			AggregateType: model.AggregateType,
			AggregateID:   id,
			EventType:     model.EventUserDeleted,
			Payload:       model.UserEvent{UserID: id, Username: username},
		})
		return err
	})
	return apperr.FromDB("users.delete", err)
}

func (r *PostgresRepository) List(ctx context.Context, page pagination.Page) ([]model.User, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB("users.list", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, apperr.FromDB("users.list", err)
	}
	defer rows.Close()

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, 0, apperr.FromDB("users.list", err)
	}
	return users, total, nil
}

func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(op, "user not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return apperr.New(apperr.KindConflict, op, "email already registered")
		case "users_username_key":
			return apperr.New(apperr.KindConflict, op, "username already taken")
		}
	}
	return apperr.FromDB(op, err)
}
