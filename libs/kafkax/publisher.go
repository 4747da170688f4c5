package kafkax

import (
	"context"
	"time"

	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/bus"
	"github.com/segmentio/kafka-go"
)

// BatchTimeout caps how long the writer holds a message before flushing.
const BatchTimeout = 10 * time.Millisecond

// Publisher writes synchronously and waits for all in-sync replicas, so a
// nil error means the broker has the message. Each publish is flushed as a
// batch of one.
type Publisher struct {
	writer *kafka.Writer
}

var _ bus.Publisher = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    1,
		BatchTimeout: BatchTimeout,
	}}
}

func (p *Publisher) Publish(ctx context.Context, msg bus.Message) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: HeadersFromAttributes(msg.Attributes),
	})
	if err != nil {
		return apperr.Messaging("kafka.publish", err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.writer.Close() }
