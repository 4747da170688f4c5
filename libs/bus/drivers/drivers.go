// Package drivers selects a bus implementation from config.Bus.
package drivers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/inkwell-labs/inkwell/libs/amqpx"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/bus"
	"github.com/inkwell-labs/inkwell/libs/config"
	"github.com/inkwell-labs/inkwell/libs/kafkax"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Driver owns the broker connection of one service and hands out publishers
// and pullers bound to the configured topic.
type Driver struct {
	cfg    config.Bus
	logger *slog.Logger

	memory     *bus.MemoryBroker
	ownsMemory bool
	amqp       *amqp.Connection

	mu      sync.Mutex
	closers []func() error
}

type Option func(*Driver)

// WithMemoryBroker shares broker between drivers in one process.
func WithMemoryBroker(broker *bus.MemoryBroker) Option {
	return func(d *Driver) { d.memory = broker }
}

func Open(ctx context.Context, cfg config.Bus, logger *slog.Logger, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(d)
	}

	switch cfg.Driver {
	case "memory":
		if d.memory == nil {
			d.memory = bus.NewMemoryBroker()
			d.ownsMemory = true
		}
		logger.Warn("bus: in-memory driver, events do not leave this process")
	case "kafka":
		if err := kafkax.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.Topic, 0, logger); err != nil {
			return nil, err
		}
	case "rabbitmq":
		conn, err := amqpx.Dial(ctx, cfg.AMQPURL, logger)
		if err != nil {
			return nil, err
		}
		if err := amqpx.EnsureTopology(conn, cfg.Topic, ""); err != nil {
			_ = conn.Close()
			return nil, err
		}
		d.amqp = conn
		d.closers = append(d.closers, conn.Close)
	}
	logger.Info("bus ready", "driver", cfg.Driver, "topic", cfg.Topic)
	return d, nil
}

func (d *Driver) Publisher() (bus.Publisher, error) {
	var (
		p   bus.Publisher
		err error
	)
	switch d.cfg.Driver {
	case "memory":
		p = d.memory.Publisher(d.cfg.Topic)
	case "kafka":
		p = kafkax.NewPublisher(d.cfg.KafkaBrokers, d.cfg.Topic)
	case "rabbitmq":
		p, err = amqpx.NewPublisher(d.amqp, d.cfg.Topic)
	}
	if err != nil {
		return nil, err
	}
	d.track(p.Close)
	return bus.Serialize(p), nil
}

// Puller creates the subscription if needed and returns a puller for it.
func (d *Driver) Puller(subscription string) (bus.Puller, error) {
	if subscription == "" {
		return nil, apperr.InvalidConfiguration("bus.puller", errors.New("BUS_SUBSCRIPTION is required"))
	}
	var (
		p   bus.Puller
		err error
	)
	switch d.cfg.Driver {
	case "memory":
		p = d.memory.Puller(d.cfg.Topic, subscription)
	case "kafka":
		p = kafkax.NewPuller(kafkax.PullerConfig{
			Brokers: d.cfg.KafkaBrokers,
			Topic:   d.cfg.Topic,
			GroupID: subscription,
		})
	case "rabbitmq":
		if err = amqpx.EnsureTopology(d.amqp, d.cfg.Topic, subscription); err != nil {
			return nil, err
		}
		p, err = amqpx.NewPuller(d.amqp, subscription)
	}
	if err != nil {
		return nil, err
	}
	d.track(p.Close)
	return p, nil
}

func (d *Driver) ReadyCheck() func(context.Context) error {
	switch d.cfg.Driver {
	case "kafka":
		return kafkax.ReadyCheck(d.cfg.KafkaBrokers)
	case "rabbitmq":
		return amqpx.ReadyCheck(d.amqp)
	default:
		return func(context.Context) error { return nil }
	}
}

func (d *Driver) track(fn func() error) {
	d.mu.Lock()
	d.closers = append(d.closers, fn)
	d.mu.Unlock()
}

// Close closes publishers and pullers in reverse order of creation, then
// the connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	if d.ownsMemory {
		d.memory.Close()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close bus: %w", errors.Join(errs...))
	}
	return nil
}
