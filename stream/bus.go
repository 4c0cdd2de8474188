// Package stream fans session events out to observers. Each session owns one
// Bus; the orchestrator is the single publisher and SSE handlers or CLI
// printers subscribe. Publishing never blocks: a subscriber that cannot keep
// up loses events rather than stalling the session.
package stream

import (
	"sync"

	"github.com/retailops/boardflow/core"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Options configures a bus.
type Options struct {
	Buffer int

	// OnDrop is invoked for every event a lagging subscriber missed.
	OnDrop func(ev core.Event)
}

// Bus is a bounded, non-blocking event fan-out for one session. Published
// events are retained so a late subscriber still receives the stream from
// session_start; a session's stream is short and bounded by its flow.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]chan core.Event
	history []core.Event
	nextID  int
	closed  bool

	buffer int
	onDrop func(ev core.Event)
}

// NewBus creates a bus.
func NewBus(optFns ...func(o *Options)) *Bus {
	opts := Options{Buffer: DefaultBuffer}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	return &Bus{
		subs:   map[int]chan core.Event{},
		buffer: opts.Buffer,
		onDrop: opts.OnDrop,
	}
}

// Subscribe registers an observer and replays every event published so far
// into its buffer. The returned cancel func detaches it and is safe to call
// more than once. Subscribing to a closed bus returns an already-closed
// channel.
func (b *Bus) Subscribe() (<-chan core.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan core.Event, b.buffer+len(b.history))
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	for _, ev := range b.history {
		ch <- ev
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with buffer room. Events for
// full subscribers are dropped, not queued.
func (b *Bus) Publish(ev core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.history = append(b.history, ev)
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.onDrop != nil {
				b.onDrop(ev)
			}
		}
	}
}

// Close ends the stream. All subscriber channels are closed after draining
// whatever they already buffered. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribers returns the current observer count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
