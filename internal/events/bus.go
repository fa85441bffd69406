package events

import (
	"sync"
	"sync/atomic"
)

// subscriber is one registered listener. Slow listeners lose messages
// rather than stalling the publisher.
type subscriber struct {
	id uint64
	ch chan any
}

// Bus fans alert lifecycle events out to subscribers. Publish never
// blocks: execution must not wait on websocket readers.
type Bus struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[Event]map[uint64]*subscriber
	dropped atomic.Uint64
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event]map[uint64]*subscriber)}
}

// Subscribe registers a buffered listener for one topic. The returned
// cancel function closes the channel and removes the listener.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	b.nextID++
	sub := &subscriber{id: b.nextID, ch: make(chan any, buffer)}
	if b.subs[e] == nil {
		b.subs[e] = make(map[uint64]*subscriber)
	}
	b.subs[e][sub.id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[e][sub.id]; ok {
			delete(b.subs[e], sub.id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers payload to every listener on the topic, dropping it
// for listeners whose buffers are full.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[e] {
		select {
		case sub.ch <- payload:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were lost to full buffers.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }
