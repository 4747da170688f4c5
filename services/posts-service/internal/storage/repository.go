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
	"github.com/inkwell-labs/inkwell/services/posts-service/internal/model"
	"github.com/jackc/pgx/v5"
)

// PostRepository is implemented by the Postgres store and by each
// decorator layered over it.
type PostRepository interface {
	Create(ctx context.Context, p model.Post) (model.Post, error)
	Get(ctx context.Context, id uuid.UUID) (model.Post, error)
	Update(ctx context.Context, p model.Post) (model.Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, page pagination.Page) ([]model.Post, int64, error)
}

// OutboxWriter appends an event inside the caller's transaction.
type OutboxWriter interface {
	Append(ctx context.Context, tx db.Execer, evt outbox.Event) (outbox.Record, error)
}

type PostgresRepository struct {
	db     db.DB
	outbox OutboxWriter
	now    func() time.Time
}

var _ PostRepository = (*PostgresRepository)(nil)

func NewPostgresRepository(pool db.DB, ob OutboxWriter) *PostgresRepository {
	return &PostgresRepository{db: pool, outbox: ob, now: time.Now}
}

const postColumns = `id, author_id, title, content, created_at, updated_at`

func scanPost(row pgx.Row) (model.Post, error) {
	var p model.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts the post and its post_created event in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, p model.Post) (model.Post, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO posts (id, author_id, title, content, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, p.AuthorID, p.Title, p.Content, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return apperr.FromDB("posts.create", err)
		}
		_, err = r.outbox.Append(ctx, tx, outbox.Event{
			AggregateType: model.AggregateType,
			AggregateID:   p.ID,
			EventType:     model.EventPostCreated,
			Payload:       model.PostEvent{PostID: p.ID, AuthorID: p.AuthorID, Title: p.Title},
		})
		return err
	})
	if err != nil {
		return model.Post{}, apperr.FromDB("posts.create", err)
	}
	return p, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (model.Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		return model.Post{}, notFound("posts.get", err)
	}
	return p, nil
}

// Update replaces title and content; author and created_at are kept.
func (r *PostgresRepository) Update(ctx context.Context, p model.Post) (model.Post, error) {
	var out model.Post
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var err error
		out, err = scanPost(tx.QueryRow(ctx, `
			UPDATE posts SET title = $2, content = $3, updated_at = $4
			WHERE id = $1
			RETURNING `+postColumns,
			p.ID, p.Title, p.Content, r.now().UTC()))
		if err != nil {
			return notFound("posts.update", err)
		}
		_, err = r.outbox.Append(ctx, tx, outbox.Event{
			AggregateType: model.AggregateType,
			AggregateID:   out.ID,
			EventType:     model.EventPostUpdated,
			Payload:       model.PostEvent{PostID: out.ID, AuthorID: out.AuthorID, Title: out.Title},
		})
		return err
	})
	if err != nil {
		return model.Post{}, apperr.FromDB("posts.update", err)
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var authorID uuid.UUID
		if err := tx.QueryRow(ctx, `DELETE FROM posts WHERE id = $1 RETURNING author_id`, id).Scan(&authorID); err != nil {
			return notFound("posts.delete", err)
		}
		_, err := r.outbox.Append(ctx, tx, outbox.Event{
			AggregateType: model.AggregateType,
			AggregateID:   id,
			EventType:     model.EventPostDeleted,
			Payload:       model.PostEvent{PostID: id, AuthorID: authorID},
		})
		return err
	})
	return apperr.FromDB("posts.delete", err)
}

// List returns one page, newest first, and the total row count.
func (r *PostgresRepository) List(ctx context.Context, page pagination.Page) ([]model.Post, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM posts`).Scan(&total); err != nil {
		return nil, 0, apperr.FromDB("posts.list", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, apperr.FromDB("posts.list", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, page.Limit())
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, apperr.FromDB("posts.list", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.FromDB("posts.list", err)
	}
	return posts, total, nil
}

func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(op, "post not found")
	}
	return apperr.FromDB(op, err)
}
