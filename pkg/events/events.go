// Package events provides a small synchronous publish/subscribe bus and
// a queue used to defer publication until a critical section ends.
package events

import "sync"

// Handler receives published events.
type Handler[T any] func(T)

// Bus delivers each published event to every current subscriber, in
// subscription order, on the publishing goroutine. The zero value is
// ready to use. It is safe for concurrent use.
type Bus[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id     uint64
	handle Handler[T]
	filter func(T) bool
}

// Subscribe registers h and returns a function that removes it. Calling
// the returned function more than once is harmless.
func (b *Bus[T]) Subscribe(h Handler[T]) (unsubscribe func()) {
	return b.SubscribeFunc(h, nil)
}

// SubscribeFunc registers h for events accepted by filter. A nil filter
// accepts everything.
func (b *Bus[T]) SubscribeFunc(h Handler[T], filter func(T) bool) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, handle: h, filter: filter})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers evts in order. Handlers may subscribe, unsubscribe, or
// publish from within a callback; such changes apply to later events.
func (b *Bus[T]) Publish(evts ...T) {
	for _, e := range evts {
		b.mu.RLock()
		subs := b.subs
		b.mu.RUnlock()
		for _, s := range subs {
			if s.filter != nil && !s.filter(e) {
				continue
			}
			s.handle(e)
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Queue buffers events until Drain. It is not safe for concurrent use;
// callers guard it with the same lock as the state the events describe.
type Queue[T any] struct {
	pending []T
}

// Push appends e to the queue.
func (q *Queue[T]) Push(e T) {
	q.pending = append(q.pending, e)
}

// Drain returns all queued events and empties the queue.
func (q *Queue[T]) Drain() []T {
	out := q.pending
	q.pending = nil
	return out
}

// Reset discards queued events.
func (q *Queue[T]) Reset() {
	q.pending = nil
}

// Len returns the number of queued events.
func (q *Queue[T]) Len() int {
	return len(q.pending)
}
