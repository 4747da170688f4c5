package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/inkwell-labs/inkwell/libs/config"
	"github.com/inkwell-labs/inkwell/libs/httpx"
	otelx "github.com/inkwell-labs/inkwell/libs/otel"
	"github.com/inkwell-labs/inkwell/libs/redisx"
	"github.com/inkwell-labs/inkwell/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	HTTP  config.HTTP
	Redis config.Redis
	CORS  httpx.CORSPolicy

	PostsURL         string `env:"POSTS_URL" envDefault:"http://posts-service:8081"`
	UsersURL         string `env:"USERS_URL" envDefault:"http://users-service:8082"`
	NotificationsURL string `env:"NOTIFICATIONS_URL" envDefault:"http://notification-service:8083"`

	BodyLimit      int64         `env:"REQUEST_BODY_LIMIT_BYTES" envDefault:"1048576"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	RateLimitFailOpen  bool   `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`
	RateLimitPrefix    string `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
}

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
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

	up, err := parseUpstreams(cfg)
	if err != nil {
		logger.Error("invalid upstream url", "err", err)
		panic(err)
	}

	rdb, err := redisx.Open(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		panic(err)
	}

	checks := upstreamChecks(up)
	var limiter httpx.Limiter
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.RateLimitPrefix)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMinute)
	} else {
		limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	registerRoutes(mux, up, otelhttp.NewTransport(http.DefaultTransport), cfg.RequestTimeout, logger)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(newHandler(mux, cfg, limiter, logger), "gateway"),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	if err := runtime.Serve(ctx, logger, srv, cfg.HTTP.ShutdownTimeout); err != nil {
		logger.Error("http server exited", "err", err)
	}
}

// newHandler applies the edge middleware. Request timeouts are applied per
// route in registerRoutes so WebSocket upgrades are not cut off.
func newHandler(mux *http.ServeMux, cfg Config, limiter httpx.Limiter, logger *slog.Logger) http.Handler {
	return httpx.Chain(mux,
		httpx.WithCORS(cfg.CORS),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(cfg.BodyLimit),
		httpx.RateLimit(limiter, logger, cfg.RateLimitFailOpen),
	)
}
