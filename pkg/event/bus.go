package event

import (
	"log/slog"
	"sync"

	"github.com/aretw0/tapestry/internal/logging"
)

// Handler receives delivered batches.
type Handler func(Batch)

type subscription struct {
	id      uint64
	kinds   []Kind
	handler Handler
}

// Bus delivers batches to subscribers in publication order.
//
// Delivery is synchronous: Publish returns after every subscriber handled the
// batch. A Publish issued from inside a handler is queued and delivered once
// the current batch reached every subscriber, so no handler observes a newer
// batch before an older one.
type Bus struct {
	mu         sync.Mutex
	subs       []subscription
	nextID     uint64
	seq        uint64
	queue      []Batch
	delivering bool
	logger     *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger for handler failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates a bus without subscribers.
func NewBus(opts ...Option) *Bus {
	b := &Bus{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for the given kinds, or every kind when none are given.
// Batches without a matching delta are not delivered to h.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kinds: kinds, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish coalesces deltas, stamps a sequence number and delivers the batch.
// Empty batches are dropped. It returns the stamped batch.
func (b *Bus) Publish(origin Origin, label string, deltas []Delta) Batch {
	if len(deltas) == 0 {
		return Batch{}
	}

	b.mu.Lock()
	b.seq++
	batch := Batch{Seq: b.seq, Origin: origin, Label: label, Deltas: Coalesce(deltas)}
	b.queue = append(b.queue, batch)
	if b.delivering {
		b.mu.Unlock()
		return batch
	}
	b.delivering = true
	b.mu.Unlock()

	b.drain()
	return batch
}

func (b *Bus) drain() {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.delivering = false
			b.mu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		subs := append([]subscription(nil), b.subs...)
		b.mu.Unlock()

		for _, s := range subs {
			view := next.Filter(s.kinds...)
			if len(view.Deltas) == 0 {
				continue
			}
			b.deliver(s, view)
		}
	}
}

func (b *Bus) deliver(s subscription, batch Batch) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked", "seq", batch.Seq, "panic", r)
		}
	}()
	s.handler(batch)
}

// Seq returns the sequence number of the last published batch.
func (b *Bus) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
