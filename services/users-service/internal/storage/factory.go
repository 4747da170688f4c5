package storage

import (
	"log/slog"
	"time"

	"github.com/inkwell-labs/inkwell/libs/cache"
	"github.com/inkwell-labs/inkwell/libs/db"
)

func NewRepository(pool db.DB, ob OutboxWriter, c cache.Cache, ttl time.Duration, logger *slog.Logger) UserRepository {
	var repo UserRepository = NewPostgresRepository(pool, ob)
	repo = NewCachedUserRepository(repo, c, ttl)
	return NewLoggedUserRepository(repo, logger)
}
