// Package outbox implements the transactional outbox: events are appended in
// the same transaction as the business write and relayed to the message bus
// by a background Poller.
package outbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-labs/inkwell/libs/apperr"
)

// Event is what a writer asks to append. Payload is marshalled to JSON
// unless it already is a json.RawMessage.
type Event struct {
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       any
}

// Record is one row of the outbox table and, serialized, the bus envelope.
// SentAt is nil while pending and set exactly once after a confirmed publish.
type Record struct {
	ID            uuid.UUID       `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	SentAt        *time.Time      `json:"sent_at"`

	Traceparent string `json:"-"`
	Tracestate  string `json:"-"`
}

func (r Record) Pending() bool { return r.SentAt == nil }

var errMissingEventType = errors.New("event_type is required")

func newRecord(evt Event, now time.Time) (Record, error) {
	if evt.EventType == "" {
		return Record{}, apperr.Validation("outbox.append", errMissingEventType.Error())
	}
	payload, err := marshalPayload(evt.Payload)
	if err != nil {
		return Record{}, apperr.Serialization("outbox.append", err)
	}
	return Record{
		ID:            uuid.New(),
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		Payload:       payload,
		CreatedAt:     now.UTC(),
	}, nil
}

func marshalPayload(p any) (json.RawMessage, error) {
	switch v := p.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid JSON")
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// Encode renders the envelope published on the bus.
func Encode(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, apperr.Serialization("outbox.encode", err)
	}
	return b, nil
}

// Decode parses an envelope. Unknown fields are ignored; a missing id or
// event type is a serialization error.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, apperr.Serialization("outbox.decode", err)
	}
	if r.ID == uuid.Nil || r.EventType == "" {
		return Record{}, apperr.Serialization("outbox.decode", errors.New("envelope missing id or event_type"))
	}
	return r, nil
}
