package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/inkwell-labs/inkwell/libs/bus"
	"github.com/inkwell-labs/inkwell/libs/bus/drivers"
	"github.com/inkwell-labs/inkwell/libs/config"
	"github.com/inkwell-labs/inkwell/libs/db"
	"github.com/inkwell-labs/inkwell/libs/fanout"
	"github.com/inkwell-labs/inkwell/libs/httpx"
	otelx "github.com/inkwell-labs/inkwell/libs/otel"
	"github.com/inkwell-labs/inkwell/libs/runtime"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/consumer"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/handlers"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/processor"
	"github.com/inkwell-labs/inkwell/services/notification-service/internal/storage"
	"github.com/inkwell-labs/inkwell/services/notification-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	HTTP     config.HTTP
	Postgres config.Postgres
	Bus      config.Bus

	Dedupe           bool     `env:"NOTIFICATION_DEDUPE" envDefault:"false"`
	WSBuffer         int      `env:"WS_BUFFER" envDefault:"64"`
	WSOriginPatterns []string `env:"WS_ORIGIN_PATTERNS" envSeparator:","`
	BodyLimit        int64    `env:"HTTP_BODY_LIMIT" envDefault:"1048576"`
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	cfg, err := config.Load[Config]()
	if err != nil {
		logger.Error("config invalid", "err", err)
		panic(err)
	}
	if cfg.Bus.Subscription == "" {
		cfg.Bus.Subscription = service
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
	}

	repo := storage.NewRepository(pool)
	hub := fanout.NewHub[processor.NotificationEvent]()
	proc := processor.New(repo, hub, logger)

	if cfg.Dedupe {
		proc.Deduplicate(repo)
		logger.Info("event dedupe enabled")
	}
	eventConsumer := consumer.New(proc, logger)

	busDriver, err := drivers.Open(ctx, cfg.Bus, logger)
	if err != nil {
		logger.Error("bus setup failed", "err", err)
		panic(err)
	}
	defer func() { _ = busDriver.Close() }()

	puller, err := busDriver.Puller(cfg.Bus.Subscription)
	if err != nil {
		logger.Error("bus subscription failed", "err", err)
		panic(err)
	}
	subscriber := bus.NewSubscriber(puller, eventConsumer.Handle, logger, bus.SubscriberConfig{PullMax: cfg.Bus.PullMax})
	go subscriber.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "bus", Check: busDriver.ReadyCheck()},
	)
	handlers.NewNotificationHandler(repo, hub, logger, handlers.Config{
		WSBuffer:         cfg.WSBuffer,
		WSOriginPatterns: cfg.WSOriginPatterns,
	}).Register(mux)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newHTTPHandler(mux, logger, cfg.BodyLimit),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	if err := runtime.Serve(ctx, logger, srv, cfg.HTTP.ShutdownTimeout); err != nil {
		logger.Error("http server exited", "err", err)
	}
}

// newHTTPHandler has no request timeout: WebSocket streams are long-lived.
func newHTTPHandler(mux *http.ServeMux, logger *slog.Logger, bodyLimit int64) http.Handler {
	h := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(bodyLimit),
	)
	return otelhttp.NewHandler(h, "notifications")
}
