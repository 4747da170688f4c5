package storage

import (
	"log/slog"
	"time"

	"github.com/inkwell-labs/inkwell/libs/cache"
	"github.com/inkwell-labs/inkwell/libs/db"
)

// NewRepository composes Logged(Cached(Postgres)).
func NewRepository(pool db.DB, ob OutboxWriter, c cache.Cache, ttl time.Duration, logger *slog.Logger) PostRepository {
	var repo PostRepository = NewPostgresRepository(pool, ob)
	repo = NewCachedPostRepository(repo, c, ttl)
	return NewLoggedPostRepository(repo, logger)
}
