package kafkax

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/bus"
	"github.com/segmentio/kafka-go"
)

type PullerConfig struct {
	Brokers []string
	Topic   string
	// GroupID is the subscription name. Offsets are committed per group.
	GroupID string
	// FetchWait bounds how long Pull waits for the first message.
	FetchWait time.Duration
}

// Puller adapts a consumer-group Reader to bus.Puller. Ack commits the
// message offset.
type Puller struct {
	reader    *kafka.Reader
	fetchWait time.Duration
}

var _ bus.Puller = (*Puller)(nil)

func NewPuller(cfg PullerConfig) *Puller {
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = time.Second
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &Puller{reader: reader, fetchWait: cfg.FetchWait}
}

// Pull waits up to FetchWait for the first message, then collects whatever
// else is already buffered, up to max.
func (p *Puller) Pull(ctx context.Context, max int) ([]*bus.Delivery, error) {
	var out []*bus.Delivery
	wait := p.fetchWait
	for len(out) < max {
		fctx, cancel := context.WithTimeout(ctx, wait)
		m, err := p.reader.FetchMessage(fctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return out, nil
			}
			return out, apperr.Messaging("kafka.pull", err)
		}
		out = append(out, p.delivery(m))
		wait = 10 * time.Millisecond
	}
	return out, nil
}

func (p *Puller) delivery(m kafka.Message) *bus.Delivery {
	id := fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
	return bus.NewDelivery(id, m.Value, AttributesFromHeaders(m.Headers), func(ctx context.Context) error {
		if err := p.reader.CommitMessages(ctx, m); err != nil {
			return apperr.Messaging("kafka.ack", err)
		}
		return nil
	})
}

func (p *Puller) Close() error { return p.reader.Close() }
