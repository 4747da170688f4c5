package amqpx

import (
	"context"
	"errors"
	"sync"

	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/inkwell-labs/inkwell/libs/bus"
	amqp "github.com/rabbitmq/amqp091-go"
)

var errNacked = errors.New("amqp: broker nacked publish")

// Publisher publishes persistent messages on a confirm-mode channel and waits
// for the broker's confirmation.
type Publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

var _ bus.Publisher = (*Publisher)(nil)

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, apperr.Messaging("amqp.publisher", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, apperr.Messaging("amqp.publisher", err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, msg bus.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, msg.Key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.Attributes["event_id"],
		Type:         msg.Attributes["event_type"],
		Headers:      HeadersFromAttributes(msg.Attributes),
		Body:         msg.Data,
	})
	if err != nil {
		return apperr.Messaging("amqp.publish", err)
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return apperr.Messaging("amqp.publish", err)
	}
	if !ok {
		return apperr.Messaging("amqp.publish", errNacked)
	}
	return nil
}

func (p *Publisher) Close() error { return p.ch.Close() }
