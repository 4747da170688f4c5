package amqpx

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestHeadersRoundTrip(t *testing.T) {
	attrs := map[string]string{"event_id": "e-1", "traceparent": "00-abc-def-01"}
	headers := HeadersFromAttributes(attrs)
	assert.Equal(t, amqp.Table{"event_id": "e-1", "traceparent": "00-abc-def-01"}, headers)
	assert.Equal(t, attrs, AttributesFromHeaders(headers))
}

func TestAttributesFromMixedHeaders(t *testing.T) {
	got := AttributesFromHeaders(amqp.Table{
		"s": "text",
		"b": []byte("bytes"),
		"n": int32(7),
	})
	assert.Equal(t, map[string]string{"s": "text", "b": "bytes", "n": "7"}, got)
	assert.Nil(t, HeadersFromAttributes(nil))
}

func TestReadyCheckWithoutConnection(t *testing.T) {
	assert.Error(t, ReadyCheck(nil)(context.Background()))
}
