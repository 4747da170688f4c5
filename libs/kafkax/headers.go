// Package kafkax is the Kafka driver for libs/bus, built on segmentio/kafka-go.
package kafkax

import (
	"sort"

	"github.com/segmentio/kafka-go"
)

// HeadersFromAttributes converts bus attributes to Kafka headers in a stable
// key order.
func HeadersFromAttributes(attrs map[string]string) []kafka.Header {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	headers := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(attrs[k])})
	}
	return headers
}

// AttributesFromHeaders is the inverse of HeadersFromAttributes. A repeated
// key keeps its last value.
func AttributesFromHeaders(headers []kafka.Header) map[string]string {
	attrs := make(map[string]string, len(headers))
	for _, h := range headers {
		attrs[h.Key] = string(h.Value)
	}
	return attrs
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
