package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestHeadersRoundTrip(t *testing.T) {
	attrs := map[string]string{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		"event_id":    "6c1f0e2a-6d2b-4a53-8a52-1f3e3e8a9d10",
		"event_type":  "post_created",
	}
	headers := HeadersFromAttributes(attrs)
	assert.Equal(t, []string{"event_id", "event_type", "traceparent"}, []string{headers[0].Key, headers[1].Key, headers[2].Key})
	assert.Equal(t, attrs, AttributesFromHeaders(headers))
	assert.Equal(t, "post_created", HeaderValue(headers, "event_type"))
	assert.Empty(t, HeaderValue(headers, "missing"))
}

func TestHeadersEmpty(t *testing.T) {
	assert.Nil(t, HeadersFromAttributes(nil))
	assert.Empty(t, AttributesFromHeaders([]kafka.Header{}))
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	assert.Error(t, ReadyCheck(nil)(context.Background()))
}
