package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/pagination"
	"github.com/inkwell-labs/inkwell/services/users-service/internal/model"
)

type LoggedUserRepository struct {
	inner  UserRepository
	logger *slog.Logger
}

var _ UserRepository = (*LoggedUserRepository)(nil)

func NewLoggedUserRepository(inner UserRepository, logger *slog.Logger) *LoggedUserRepository {
	return &LoggedUserRepository{inner: inner, logger: logger}
}

func (r *LoggedUserRepository) log(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "duration_ms", time.Since(start).Milliseconds())
	if err == nil {
		r.logger.DebugContext(ctx, "repository call", attrs...)
		return
	}
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindValidation, apperr.KindConflict:
		r.logger.InfoContext(ctx, "repository call rejected", append(attrs, "err", err)...)
	default:
		r.logger.ErrorContext(ctx, "repository call failed", append(attrs, "err", err)...)
	}
}

func (r *LoggedUserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	start := time.Now()
	out, err := r.inner.Create(ctx, u)
	r.log(ctx, "users.create", start, err, "user_id", out.ID)
	return out, err
}

func (r *LoggedUserRepository) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	start := time.Now()
	out, err := r.inner.Get(ctx, id)
	r.log(ctx, "users.get", start, err, "user_id", id)
	return out, err
}

func (r *LoggedUserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	start := time.Now()
	out, err := r.inner.GetByUsername(ctx, username)
	r.log(ctx, "users.get_by_username", start, err, "username", username)
	return out, err
}

func (r *LoggedUserRepository) Update(ctx context.Context, u model.User) (model.User, error) {
	start := time.Now()
	out, err := r.inner.Update(ctx, u)
	r.log(ctx, "users.update", start, err, "user_id", u.ID)
	return out, err
}

func (r *LoggedUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := r.inner.Delete(ctx, id)
	r.log(ctx, "users.delete", start, err, "user_id", id)
	return err
}

func (r *LoggedUserRepository) List(ctx context.Context, page pagination.Page) ([]model.User, int64, error) {
	start := time.Now()
	out, total, err := r.inner.List(ctx, page)
	r.log(ctx, "users.list", start, err, "page", page.Page, "total", total)
	return out, total, err
}
