package kafkax

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/inkwell-labs/inkwell/libs/apperr"
	"github.com/segmentio/kafka-go"
)

// EnsureTopic creates topic through the cluster controller. It is safe to
// call from every service on startup; an existing topic is not an error.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int, logger *slog.Logger) error {
	if len(brokers) == 0 {
		return apperr.InvalidConfiguration("kafka.ensure_topic", errors.New("no brokers"))
	}
	if partitions <= 0 {
		partitions = 3
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, createTopic(ctx, brokers[0], topic, partitions)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(time.Minute),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("kafka topic setup failed, retrying", "topic", topic, "err", err, "retry_in", next)
		}),
	)
	if err != nil {
		return apperr.Messaging("kafka.ensure_topic", err)
	}
	return nil
}

func createTopic(ctx context.Context, broker, topic string, partitions int) error {
	dialer := kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	cconn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if errors.Is(err, kafka.TopicAlreadyExists) {
		return nil
	}
	return err
}
