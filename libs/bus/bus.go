// Package bus is the message-bus contract shared by the outbox poller (write
// side) and the event subscriber (read side), plus an in-memory broker.
//
// Drivers for real brokers live in libs/kafkax and libs/amqpx.
package bus

import (
	"context"
	"sync"
)

// Message is one outgoing payload. Key is used for partitioning by brokers
// that support it; Attributes carry metadata such as trace context.
type Message struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

// Publisher publishes a message and returns only after the broker has
// acknowledged durable acceptance. Failures are apperr.KindMessaging.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Puller returns up to max pending deliveries, possibly none.
type Puller interface {
	Pull(ctx context.Context, max int) ([]*Delivery, error)
	Close() error
}

// Delivery is a received message with its acknowledgement handle.
type Delivery struct {
	ID         string
	Data       []byte
	Attributes map[string]string

	ack func(context.Context) error
}

func NewDelivery(id string, data []byte, attrs map[string]string, ack func(context.Context) error) *Delivery {
	return &Delivery{ID: id, Data: data, Attributes: attrs, ack: ack}
}

// Ack marks the delivery as processed. The broker may still redeliver if the
// ack is lost.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// SerializedPublisher allows one publish call at a time per process. The
// publish handle is shared by all writers of a service.
type SerializedPublisher struct {
	mu    sync.Mutex
	inner Publisher
}

func Serialize(p Publisher) *SerializedPublisher {
	if sp, ok := p.(*SerializedPublisher); ok {
		return sp
	}
	return &SerializedPublisher{inner: p}
}

func (s *SerializedPublisher) Publish(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Publish(ctx, msg)
}

func (s *SerializedPublisher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
