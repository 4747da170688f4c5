// Package amqpx is the RabbitMQ driver for libs/bus. A topic is a durable
// fanout exchange and a subscription is a durable queue bound to it.
package amqpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Dial connects with exponential backoff; brokers usually start after the
// services in local compose setups.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*amqp.Connection, error) {
	conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
		return amqp.Dial(url)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(time.Minute),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("amqp dial failed, retrying", "err", err, "retry_in", next)
		}),
	)
	if err != nil {
		return nil, apperr.Messaging("amqp.dial", err)
	}
	return conn, nil
}

// EnsureTopology declares the exchange and, when subscription is not empty,
// the queue and its binding. Declarations are idempotent.
func EnsureTopology(conn *amqp.Connection, topic, subscription string) error {
	ch, err := conn.Channel()
	if err != nil {
		return apperr.Messaging("amqp.topology", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(topic, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return apperr.Messaging("amqp.topology", fmt.Errorf("declare exchange %s: %w", topic, err))
	}
	if subscription == "" {
		return nil
	}
	q, err := ch.QueueDeclare(subscription, true, false, false, false, nil)
	if err != nil {
		return apperr.Messaging("amqp.topology", fmt.Errorf("declare queue %s: %w", subscription, err))
	}
	if err := ch.QueueBind(q.Name, "", topic, false, nil); err != nil {
		return apperr.Messaging("amqp.topology", fmt.Errorf("bind %s to %s: %w", q.Name, topic, err))
	}
	return nil
}

func ReadyCheck(conn *amqp.Connection) func(context.Context) error {
	return func(context.Context) error {
		if conn == nil {
			return errors.New("amqp not configured")
		}
		if conn.IsClosed() {
			return errors.New("amqp connection closed")
		}
		return nil
	}
}

// HeadersFromAttributes converts bus attributes to AMQP headers.
func HeadersFromAttributes(attrs map[string]string) amqp.Table {
	if len(attrs) == 0 {
		return nil
	}
	t := make(amqp.Table, len(attrs))
	for k, v := range attrs {
		t[k] = v
	}
	return t
}

// AttributesFromHeaders keeps string and []byte header values; anything
// else is formatted with %v.
func AttributesFromHeaders(headers amqp.Table) map[string]string {
	attrs := make(map[string]string, len(headers))
	for k, v := range headers {
		switch val := v.(type) {
		case string:
			attrs[k] = val
		case []byte:
			attrs[k] = string(val)
		default:
			attrs[k] = fmt.Sprint(val)
		}
	}
	return attrs
}
