// Package broker fans out session events to any number of subscribers
// (the web dashboard's SSE clients, and through them the TUI), so the
// Connection Handler's event.Sink has exactly one producer regardless of
// how many consumers are watching.
package broker

import (
	"sync"

	"github.com/ksugimoto/hislipd/event"
)

// Broker is a fan-out, drop-when-full publisher. It implements event.Sink.
type Broker struct {
	mu     sync.Mutex
	buffer int
	subs   map[chan event.Event]struct{}
}

// New creates a Broker. buffer sets each subscriber channel's capacity;
// a subscriber that falls behind by more than buffer events misses the
// newer ones that arrive while its channel is full, rather than blocking
// the publisher (event delivery must
// never add a suspension point to the protocol receive loop).
func New(buffer int) *Broker {
	return &Broker{
		buffer: buffer,
		subs:   make(map[chan event.Event]struct{}),
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function. Callers must call the returned function exactly
// once when done.
func (b *Broker) Subscribe() (<-chan event.Event, func()) {
	ch := make(chan event.Event, b.buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsub
}

// Emit implements event.Sink: publishes ev to every current subscriber,
// dropping it for any subscriber whose channel is full.
func (b *Broker) Emit(ev event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
