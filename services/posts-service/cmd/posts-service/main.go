package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/inkwell-labs/inkwell/libs/bus/drivers"
	"github.com/inkwell-labs/inkwell/libs/cache"
	"github.com/inkwell-labs/inkwell/libs/config"
	"github.com/inkwell-labs/inkwell/libs/db"
	"github.com/inkwell-labs/inkwell/libs/httpx"
	otelx "github.com/inkwell-labs/inkwell/libs/otel"
	"github.com/inkwell-labs/inkwell/libs/outbox"
	"github.com/inkwell-labs/inkwell/libs/redisx"
	"github.com/inkwell-labs/inkwell/libs/runtime"
	"github.com/inkwell-labs/inkwell/services/posts-service/internal/handlers"
	"github.com/inkwell-labs/inkwell/services/posts-service/internal/storage"
	"github.com/inkwell-labs/inkwell/services/posts-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	HTTP      config.HTTP
	Postgres  config.Postgres
	Redis     config.Redis
	Cache     config.Cache
	Bus       config.Bus
	Outbox    config.Outbox
	BodyLimit int64 `env:"HTTP_BODY_LIMIT" envDefault:"1048576"`
}

func main() {
	service := config.String("SERVICE_NAME", "posts-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	cfg, err := config.Load[Config]()
	if err != nil {
		logger.Error("config invalid", "err", err)
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if cfg.Postgres.Migrate {
		if err := db.Migrate(migrations.FS, ".", cfg.Postgres.URL); err != nil {
			logger.Error("db migration failed", "err", err)
			panic(err)
		}
		logger.Info("db migrations applied")
	}

	rdb, err := redisx.Open(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		panic(err)
	}
	var postCache cache.Cache
	if rdb != nil {
		defer rdb.Close()
		postCache = cache.New(cacheOptions(cfg.Cache), rdb, logger)
	} else {
		postCache = cache.New(cacheOptions(cfg.Cache), nil, logger)
	}

	outboxStore := outbox.NewPostgresStore(pool)
	repo := storage.NewRepository(pool, outboxStore, postCache, cfg.Cache.TTL, logger)

	busDriver, err := drivers.Open(ctx, cfg.Bus, logger)
	if err != nil {
		logger.Error("bus setup failed", "err", err)
		panic(err)
	}
	defer func() { _ = busDriver.Close() }()

	publisher, err := busDriver.Publisher()
	if err != nil {
		logger.Error("bus publisher failed", "err", err)
		panic(err)
	}

	pollerCfg := outbox.PollerConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
	}
	if cfg.Outbox.Lock {
		if rdb == nil {
			logger.Warn("OUTBOX_LOCK set without REDIS_URL; poller runs unlocked")
		} else {
			pollerCfg.Locker = redisx.NewLocker(rdb, service+":outbox-poller", cfg.Outbox.LockExpiry)
		}
	}
	go outbox.NewPoller(outboxStore, publisher, logger, pollerCfg).Run(ctx)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "bus", Check: busDriver.ReadyCheck()},
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewPostHandler(repo).Register(mux)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newHTTPHandler(mux, logger, cfg.BodyLimit),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	if err := runtime.Serve(ctx, logger, srv, cfg.HTTP.ShutdownTimeout); err != nil {
		logger.Error("http server exited", "err", err)
	}
}

func newHTTPHandler(mux *http.ServeMux, logger *slog.Logger, bodyLimit int64) http.Handler {
	h := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(bodyLimit),
	)
	return otelhttp.NewHandler(h, "posts")
}

func cacheOptions(c config.Cache) cache.Options {
	return cache.Options{
		MaxCapacity:     c.MaxCapacity,
		TTL:             c.TTL,
		TTI:             c.TTI,
		RemoteOpTimeout: c.RemoteOpTimeout,
	}
}
