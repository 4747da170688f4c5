package bus

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/inkwell-labs/inkwell/libs/apperr"
)

var ErrClosed = errors.New("bus: closed")

// MemoryBroker is an in-process broker with topic → subscription fan-out and
// at-least-once semantics: pulled but unacked messages can be requeued with
// Redeliver. It backs BUS_DRIVER=memory and the pipeline tests.
type MemoryBroker struct {
	mu      sync.Mutex
	seq     int
	topics  map[string]map[string]*memorySubscription
	failErr error
	closed  bool
}

type memoryMessage struct {
	id    string
	data  []byte
	attrs map[string]string
}

type memorySubscription struct {
	pending  []memoryMessage
	inflight map[string]memoryMessage
	acked    int
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: map[string]map[string]*memorySubscription{}}
}

// EnsureSubscription creates topic and subscription if absent. Messages
// published before a subscription exists are not delivered to it.
func (b *MemoryBroker) EnsureSubscription(topic, subscription string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureLocked(topic, subscription)
}

func (b *MemoryBroker) ensureLocked(topic, subscription string) *memorySubscription {
	subs, ok := b.topics[topic]
	if !ok {
		subs = map[string]*memorySubscription{}
		b.topics[topic] = subs
	}
	if subscription == "" {
		return nil
	}
	sub, ok := subs[subscription]
	if !ok {
		sub = &memorySubscription{inflight: map[string]memoryMessage{}}
		subs[subscription] = sub
	}
	return sub
}

// FailPublishes makes every following publish fail with err until called
// with nil.
func (b *MemoryBroker) FailPublishes(err error) {
	b.mu.Lock()
	b.failErr = err
	b.mu.Unlock()
}

func (b *MemoryBroker) publish(topic string, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return apperr.Messaging("bus.memory.publish", ErrClosed)
	}
	if b.failErr != nil {
		return apperr.Messaging("bus.memory.publish", b.failErr)
	}
	b.ensureLocked(topic, "")
	b.seq++
	id := strconv.Itoa(b.seq)
	for _, sub := range b.topics[topic] {
		attrs := make(map[string]string, len(msg.Attributes))
		for k, v := range msg.Attributes {
			attrs[k] = v
		}
		data := append([]byte(nil), msg.Data...)
		sub.pending = append(sub.pending, memoryMessage{id: id, data: data, attrs: attrs})
	}
	return nil
}

func (b *MemoryBroker) pull(topic, subscription string, max int) ([]*Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, apperr.Messaging("bus.memory.pull", ErrClosed)
	}
	sub := b.ensureLocked(topic, subscription)
	n := min(max, len(sub.pending))
	out := make([]*Delivery, 0, n)
	for _, m := range sub.pending[:n] {
		sub.inflight[m.id] = m
		id := m.id
		out = append(out, NewDelivery(id, m.data, m.attrs, func(context.Context) error {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := sub.inflight[id]; ok {
				delete(sub.inflight, id)
				sub.acked++
			}
			return nil
		}))
	}
	sub.pending = sub.pending[n:]
	return out, nil
}

// Redeliver requeues every unacknowledged message of the subscription.
func (b *MemoryBroker) Redeliver(topic, subscription string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := b.ensureLocked(topic, subscription)
	n := 0
	for id, m := range sub.inflight {
		sub.pending = append(sub.pending, m)
		delete(sub.inflight, id)
		n++
	}
	return n
}

// Stats reports pending and acknowledged counts for a subscription.
func (b *MemoryBroker) Stats(topic, subscription string) (pending, acked int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := b.ensureLocked(topic, subscription)
	return len(sub.pending), sub.acked
}

func (b *MemoryBroker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Publisher returns a publisher bound to topic.
func (b *MemoryBroker) Publisher(topic string) Publisher {
	return &memoryPublisher{broker: b, topic: topic}
}

// Puller returns a puller bound to topic/subscription, creating the
// subscription on first use.
func (b *MemoryBroker) Puller(topic, subscription string) Puller {
	b.EnsureSubscription(topic, subscription)
	return &memoryPuller{broker: b, topic: topic, subscription: subscription}
}

type memoryPublisher struct {
	broker *MemoryBroker
	topic  string
}

func (p *memoryPublisher) Publish(_ context.Context, msg Message) error {
	return p.broker.publish(p.topic, msg)
}

func (p *memoryPublisher) Close() error { return nil }

type memoryPuller struct {
	broker       *MemoryBroker
	topic        string
	subscription string
}

func (p *memoryPuller) Pull(ctx context.Context, max int) ([]*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.broker.pull(p.topic, p.subscription, max)
}

func (p *memoryPuller) Close() error { return nil }
