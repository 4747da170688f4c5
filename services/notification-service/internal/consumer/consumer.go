// Package consumer adapts bus deliveries to the processor.
package consumer

import (
	"context"
	"log/slog"

	"github.com/inkwell-labs/inkwell/libs/bus"
	"github.com/inkwell-labs/inkwell/libs/outbox"
)

// Processor handles one decoded event. Deduplication, when enabled, happens
// inside the processor's write transaction.
type Processor interface {
	Process(ctx context.Context, rec outbox.Record)
}

type Consumer struct {
	processor Processor
	logger    *slog.Logger
}

func New(p Processor, logger *slog.Logger) *Consumer {
	return &Consumer{processor: p, logger: logger}
}

// Handle is a bus.Handler. Envelopes that do not decode are returned as
// errors; the subscriber logs and acknowledges them.
func (c *Consumer) Handle(ctx context.Context, d *bus.Delivery) error {
	rec, err := outbox.Decode(d.Data)
	if err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "event received", "event_id", rec.ID, "event_type", rec.EventType, "message_id", d.ID)
	c.processor.Process(ctx, rec)
	return nil
}
