package event

import "sync"

// SubscribeAsync registers h behind an unbounded ordered queue drained by a
// single goroutine, so a slow view never stalls the editing context and
// still sees batches in publication order.
//
// The returned function unsubscribes, waits for the queued batches to be
// handled and stops the goroutine.
func (b *Bus) SubscribeAsync(h Handler, kinds ...Kind) (stop func()) {
	q := &asyncQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run(h)

	unsubscribe := b.Subscribe(q.push, kinds...)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			q.close()
			<-q.done
		})
	}
}

type asyncQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Batch
	closed bool
	done   chan struct{}
}

func (q *asyncQueue) push(batch Batch) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, batch)
		q.cond.Signal()
	}
	q.mu.Unlock()
}

func (q *asyncQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
}

func (q *asyncQueue) run(h Handler) {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		next := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		h(next)
	}
}
