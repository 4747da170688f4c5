package bus

import (
	"context"
	"log/slog"
	"time"

	otelx "github.com/inkwell-labs/inkwell/libs/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPullMax  = 10
	DefaultIdleWait = 500 * time.Millisecond
)

// Handler processes one delivery. Returned errors are logged; the delivery
// is acknowledged either way so a poison message cannot block the queue.
type Handler func(ctx context.Context, d *Delivery) error

type SubscriberConfig struct {
	PullMax  int
	IdleWait time.Duration
}

// Subscriber is the read-side pull loop.
type Subscriber struct {
	puller   Puller
	handler  Handler
	logger   *slog.Logger
	pullMax  int
	idleWait time.Duration
}

func NewSubscriber(puller Puller, handler Handler, logger *slog.Logger, cfg SubscriberConfig) *Subscriber {
	if cfg.PullMax <= 0 {
		cfg.PullMax = DefaultPullMax
	}
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = DefaultIdleWait
	}
	return &Subscriber{
		puller:   puller,
		handler:  handler,
		logger:   logger,
		pullMax:  cfg.PullMax,
		idleWait: cfg.IdleWait,
	}
}

// Run pulls until ctx is cancelled. It never returns early on pull, handler
// or ack errors.
func (s *Subscriber) Run(ctx context.Context) {
	s.logger.Info("bus subscriber started", "pull_max", s.pullMax)
	defer s.logger.Info("bus subscriber stopped")

	for {
		n, err := s.PollOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Error("bus pull failed", "err", err)
		}
		if n > 0 && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.idleWait):
		}
	}
}

// PollOnce performs a single pull round and returns how many deliveries were
// handled.
func (s *Subscriber) PollOnce(ctx context.Context) (int, error) {
	deliveries, err := s.puller.Pull(ctx, s.pullMax)
	if err != nil {
		return 0, err
	}
	for _, d := range deliveries {
		s.handle(ctx, d)
	}
	return len(deliveries), nil
}

func (s *Subscriber) handle(ctx context.Context, d *Delivery) {
	msgCtx := otelx.ExtractAttributes(ctx, d.Attributes)
	spanCtx, span := otel.Tracer("bus").Start(msgCtx, "bus.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.message.id", d.ID)),
	)
	defer span.End()

	if err := s.handler(spanCtx, d); err != nil {
		span.RecordError(err)
		s.logger.Error("bus handler error", "err", err, "message_id", d.ID)
	}
	if err := d.Ack(ctx); err != nil {
		span.RecordError(err)
		s.logger.Error("bus ack failed", "err", err, "message_id", d.ID)
	}
}
