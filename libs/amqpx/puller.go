package amqpx

import (
	"context"
	"strconv"
	"sync"

	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/bus"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Puller drains a queue with basic.get. Messages stay unacked, and are
// redelivered by the broker, until Delivery.Ack.
type Puller struct {
	mu    sync.Mutex
	ch    *amqp.Channel
	queue string
}

var _ bus.Puller = (*Puller)(nil)

func NewPuller(conn *amqp.Connection, queue string) (*Puller, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, apperr.Messaging("amqp.puller", err)
	}
	return &Puller{ch: ch, queue: queue}, nil
}

func (p *Puller) Pull(ctx context.Context, max int) ([]*bus.Delivery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*bus.Delivery
	for len(out) < max {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		m, ok, err := p.ch.Get(p.queue, false)
		if err != nil {
			return out, apperr.Messaging("amqp.pull", err)
		}
		if !ok {
			break
		}
		out = append(out, p.delivery(m))
	}
	return out, nil
}

func (p *Puller) delivery(m amqp.Delivery) *bus.Delivery {
	id := m.MessageId
	if id == "" {
		id = strconv.FormatUint(m.DeliveryTag, 10)
	}
	return bus.NewDelivery(id, m.Body, AttributesFromHeaders(m.Headers), func(context.Context) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if err := m.Ack(false); err != nil {
			return apperr.Messaging("amqp.ack", err)
		}
		return nil
	})
}

func (p *Puller) Close() error { return p.ch.Close() }
