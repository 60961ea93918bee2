package session

import "sync"

// Event names one of the two view refreshes a session can need. The queue
// view tracks pending jobs; the results view tracks completions and errors.
type Event string

const (
	EventQueue   Event = "queue"
	EventResults Event = "results"
)

// Bus is a small per-session fan-out. View subscribers (websocket
// connections) receive refresh events from the progress listener and from
// mutating handlers. Slow subscribers drop events instead of blocking the
// publisher; a dropped refresh is recovered on the next tick.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the subscriber goes away.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
