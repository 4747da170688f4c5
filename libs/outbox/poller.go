package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/bus"
	otelx "github.com/inkwell-labs/inkwell/libs/otel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the read/update side of the outbox used by the Poller.
type Store interface {
	FetchUnsent(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Locker guards a poll cycle when several instances of a service run.
// ok=false means another instance holds the lock and the cycle is skipped.
type Locker interface {
	TryLock(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

type PollerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// Locker is optional. Without it a single poller per service is assumed.
	Locker Locker
	Now    func() time.Time
}

// Poller relays pending records to the bus: scan oldest-first, publish one
// at a time, mark each sent right after its publish is confirmed.
type Poller struct {
	store     Store
	publisher bus.Publisher
	logger    *slog.Logger
	locker    Locker
	now       func() time.Time
	pollEvery time.Duration
	batchSize int
}

func NewPoller(store Store, publisher bus.Publisher, logger *slog.Logger, cfg PollerConfig) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Poller{
		store:     store,
		publisher: bus.Serialize(publisher),
		logger:    logger,
		locker:    cfg.Locker,
		now:       cfg.Now,
		pollEvery: cfg.PollInterval,
		batchSize: cfg.BatchSize,
	}
}

// Run polls on a fixed interval until ctx is cancelled. Cycle errors are
// logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	if p.locker == nil {
		p.logger.Info("outbox poller started (single instance, no lock)", "interval", p.pollEvery, "batch_size", p.batchSize)
	} else {
		p.logger.Info("outbox poller started", "interval", p.pollEvery, "batch_size", p.batchSize)
	}

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox poller stopped")
			return
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox poll failed", "err", err)
			}
		}
	}
}

// PollOnce runs one Scanning → Publishing → Marking cycle and returns the
// number of records marked sent. The first failure aborts the cycle; records
// not yet marked stay pending.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	if p.locker != nil {
		release, ok, err := p.locker.TryLock(ctx)
		if err != nil {
			return 0, fmt.Errorf("outbox lock: %w", err)
		}
		if !ok {
			p.logger.Debug("outbox poll skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				p.logger.Warn("outbox unlock failed", "err", err)
			}
		}()
	}

	records, err := p.store.FetchUnsent(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	p.logger.Debug("outbox pending records", "count", len(records))

	sent := 0
	for _, rec := range records {
		if err := p.deliver(ctx, rec); err != nil {
			if sent > 0 {
				p.logger.Info("outbox published", "count", sent)
			}
			return sent, fmt.Errorf("event %s: %w", rec.ID, err)
		}
		sent++
	}
	p.logger.Info("outbox published", "count", sent)
	return sent, nil
}

func (p *Poller) deliver(ctx context.Context, rec Record) error {
	recCtx := otelx.ContextWithTraceContext(ctx, rec.Traceparent, rec.Tracestate)
	spanCtx, span := otel.Tracer("outbox").Start(recCtx, "outbox.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("outbox.event_id", rec.ID.String()),
			attribute.String("outbox.event_type", rec.EventType),
		),
	)
	defer span.End()

	sentAt := p.now().UTC()
	envelope := rec
	envelope.SentAt = &sentAt
	data, err := Encode(envelope)
	if err != nil {
		span.SetStatus(codes.Error, "encode")
		return err
	}

	attrs := otelx.InjectAttributes(spanCtx, map[string]string{
		"event_id":   rec.ID.String(),
		"event_type": rec.EventType,
	})
	if err := p.publisher.Publish(spanCtx, bus.Message{Key: rec.AggregateID.String(), Data: data, Attributes: attrs}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish")
		return err
	}
	if err := p.store.MarkSent(ctx, rec.ID, sentAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark sent")
		return err
	}
	return nil
}
