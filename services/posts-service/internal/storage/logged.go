package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/posts-service/internal/model"
)

// LoggedPostRepository records duration and outcome of every call.
// Not-found is logged at debug level; other failures at error level.
type LoggedPostRepository struct {
	inner  PostRepository
	logger *slog.Logger
}

var _ PostRepository = (*LoggedPostRepository)(nil)

func NewLoggedPostRepository(inner PostRepository, logger *slog.Logger) *LoggedPostRepository {
	return &LoggedPostRepository{inner: inner, logger: logger}
}

func (r *LoggedPostRepository) log(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "duration_ms", time.Since(start).Milliseconds())
	switch {
	case err == nil:
		r.logger.DebugContext(ctx, "repository call", attrs...)
	case apperr.KindOf(err) == apperr.KindNotFound || apperr.KindOf(err) == apperr.KindValidation:
		r.logger.DebugContext(ctx, "repository call", append(attrs, "err", err)...)
	default:
		r.logger.ErrorContext(ctx, "repository call failed", append(attrs, "err", err)...)
	}
}

func (r *LoggedPostRepository) Create(ctx context.Context, p model.Post) (model.Post, error) {
	start := time.Now()
	out, err := r.inner.Create(ctx, p)
	r.log(ctx, "posts.create", start, err, "post_id", out.ID)
	return out, err
}

func (r *LoggedPostRepository) Get(ctx context.Context, id uuid.UUID) (model.Post, error) {
	start := time.Now()
	out, err := r.inner.Get(ctx, id)
	r.log(ctx, "posts.get", start, err, "post_id", id)
	return out, err
}

func (r *LoggedPostRepository) Update(ctx context.Context, p model.Post) (model.Post, error) {
	start := time.Now()
	out, err := r.inner.Update(ctx, p)
	r.log(ctx, "posts.update", start, err, "post_id", p.ID)
	return out, err
}

func (r *LoggedPostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := r.inner.Delete(ctx, id)
	r.log(ctx, "posts.delete", start, err, "post_id", id)
	return err
}

func (r *LoggedPostRepository) List(ctx context.Context, page pagination.Page) ([]model.Post, int64, error) {
	start := time.Now()
	out, total, err := r.inner.List(ctx, page)
	r.log(ctx, "posts.list", start, err, "page", page.Page, "page_size", page.PageSize, "total", total)
	return out, total, err
}
