// Package fanout is an in-process broadcast hub. Producers never block:
// when a listener's buffer is full its oldest queued event is dropped.
package fanout

import (
	"sync"
	"sync/atomic"
)

const DefaultBuffer = 64

type Hub[T any] struct {
	mu        sync.RWMutex
	listeners map[uint64]*Listener[T]
	next      uint64
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{listeners: make(map[uint64]*Listener[T])}
}

// Listener receives the events accepted by its match function.
type Listener[T any] struct {
	hub     *Hub[T]
	id      uint64
	match   func(T) bool
	ch      chan T
	sendMu  sync.Mutex
	dropped atomic.Uint64
	once    sync.Once
}

// Subscribe registers a listener. A nil match accepts every event.
func (h *Hub[T]) Subscribe(match func(T) bool, buffer int) *Listener[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	l := &Listener[T]{hub: h, id: h.next, match: match, ch: make(chan T, buffer)}
	h.listeners[l.id] = l
	return l
}

// Publish delivers evt to every matching listener. With no listeners the
// event is discarded.
func (h *Hub[T]) Publish(evt T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, l := range h.listeners {
		if l.match != nil && !l.match(evt) {
			continue
		}
		l.offer(evt)
	}
}

func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (l *Listener[T]) offer(evt T) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	for {
		select {
		case l.ch <- evt:
			return
		default:
		}
		select {
		case <-l.ch:
			l.dropped.Add(1)
		default:
		}
	}
}

// C is closed after Close.
func (l *Listener[T]) C() <-chan T { return l.ch }

// Dropped counts events discarded because the buffer was full.
func (l *Listener[T]) Dropped() uint64 { return l.dropped.Load() }

func (l *Listener[T]) Close() {
	l.once.Do(func() {
		l.hub.mu.Lock()
		delete(l.hub.listeners, l.id)
		l.hub.mu.Unlock()
		close(l.ch)
	})
}
