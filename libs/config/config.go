package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/inkwell-labs/inkwell/libs/apperr"
)

func String(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func RequiredString(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", apperr.InvalidConfiguration("config", fmt.Errorf("%s is required", key))
	}
	return v, nil
}

func Port(key, fallback string) (string, error) {
	v := String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", apperr.InvalidConfiguration("config", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v))
	}
	return v, nil
}

// Load parses environment variables into T using `env` struct tags.
func Load[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, apperr.InvalidConfiguration("config", err)
	}
	return cfg, nil
}

type (
	HTTP struct {
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
		ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	}

	Postgres struct {
		URL     string `env:"DATABASE_URL,required"`
		Migrate bool   `env:"DB_MIGRATE" envDefault:"true"`
	}

	Redis struct {
		URL string `env:"REDIS_URL"`
	}

	Cache struct {
		MaxCapacity     int           `env:"CACHE_MAX_CAPACITY" envDefault:"10000"`
		TTL             time.Duration `env:"CACHE_TTL" envDefault:"5m"`
		TTI             time.Duration `env:"CACHE_TTI" envDefault:"1m"`
		RemoteOpTimeout time.Duration `env:"CACHE_REMOTE_TIMEOUT" envDefault:"250ms"`
	}

	Bus struct {
		Driver       string   `env:"BUS_DRIVER" envDefault:"kafka"`
		KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
		AMQPURL      string   `env:"AMQP_URL"`
		Topic        string   `env:"BUS_TOPIC" envDefault:"domain-events"`
		Subscription string   `env:"BUS_SUBSCRIPTION"`
		PullMax      int      `env:"BUS_PULL_MAX" envDefault:"10"`
	}

	Outbox struct {
		PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
		BatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
		Lock         bool          `env:"OUTBOX_LOCK" envDefault:"false"`
		LockExpiry   time.Duration `env:"OUTBOX_LOCK_EXPIRY" envDefault:"30s"`
	}
)

// Validate rejects bus settings that cannot produce a working driver.
func (b Bus) Validate() error {
	switch b.Driver {
	case "kafka":
		if len(b.KafkaBrokers) == 0 {
			return apperr.InvalidConfiguration("config", fmt.Errorf("KAFKA_BROKERS is required for BUS_DRIVER=kafka"))
		}
	case "rabbitmq":
		if b.AMQPURL == "" {
			return apperr.InvalidConfiguration("config", fmt.Errorf("AMQP_URL is required for BUS_DRIVER=rabbitmq"))
		}
	case "memory":
	default:
		return apperr.InvalidConfiguration("config", fmt.Errorf("unknown BUS_DRIVER %q", b.Driver))
	}
	if b.Topic == "" {
		return apperr.InvalidConfiguration("config", fmt.Errorf("BUS_TOPIC must not be empty"))
	}
	return nil
}
