// Package syncstore keeps in-memory snapshots of persisted client state in
// step with storage and tells subscribers when they change, including
// changes written by other tabs.
package syncstore

import (
	"sync"
)

// Listener is invoked after a change. It runs on the goroutine that caused
// the change and may read snapshots or (un)subscribe.
type Listener func()

// Notifier is a subscribe/emit registry with hooks for the first subscriber
// arriving and the last one leaving.
type Notifier struct {
	mu        sync.Mutex
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64

	onActive func()
	onIdle   func()
}

// NewNotifier builds a notifier. onActive runs when the subscriber count goes
// from zero to one and onIdle when it drops back to zero; both may be nil.
func NewNotifier(onActive, onIdle func()) *Notifier {
	return &Notifier{
		listeners: make(map[uint64]Listener),
		onActive:  onActive,
		onIdle:    onIdle,
	}
}

// Subscribe registers fn and returns its idempotent unsubscribe function.
func (n *Notifier) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.order = append(n.order, id)
	first := len(n.listeners) == 1
	n.mu.Unlock()

	if first && n.onActive != nil {
		n.onActive()
	}

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	if _, ok := n.listeners[id]; !ok {
		n.mu.Unlock()
		return
	}
	delete(n.listeners, id)
	for i, candidate := range n.order {
		if candidate == id {
			n.order = append(n.order[:i:i], n.order[i+1:]...)
			break
		}
	}
	last := len(n.listeners) == 0
	n.mu.Unlock()

	if last && n.onIdle != nil {
		n.onIdle()
	}
}

// Emit calls every listener registered at the time of the call, in
// subscription order.
func (n *Notifier) Emit() {
	n.mu.Lock()
	targets := make([]Listener, 0, len(n.order))
	for _, id := range n.order {
		targets = append(targets, n.listeners[id])
	}
	n.mu.Unlock()

	for _, fn := range targets {
		fn()
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}
