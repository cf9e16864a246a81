package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("kv: backend closed")

// Memory is an in-process backend. Several adapters over the same Memory
// behave like several tabs over one browser profile.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]string
	watchers map[uint64]*mailbox
	nextID   uint64
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]string),
		watchers: make(map[uint64]*mailbox),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value, origin string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.data[key] = value
	targets := m.watcherList()
	m.mu.Unlock()

	m.broadcast(targets, Event{Key: key, Origin: origin})
	return nil
}

func (m *Memory) Delete(_ context.Context, key, origin string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	_, existed := m.data[key]
	delete(m.data, key)
	targets := m.watcherList()
	m.mu.Unlock()

	if existed {
		m.broadcast(targets, Event{Key: key, Origin: origin})
	}
	return nil
}

func (m *Memory) Watch(_ context.Context, fn func(Event)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	id := m.nextID
	m.nextID++
	box := newMailbox(fn)
	m.watchers[id] = box
	go box.run()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
		box.stop()
	}, nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	targets := m.watcherList()
	m.watchers = make(map[uint64]*mailbox)
	m.mu.Unlock()

	for _, box := range targets {
		box.stop()
	}
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) watcherList() []*mailbox {
	out := make([]*mailbox, 0, len(m.watchers))
	for _, box := range m.watchers {
		out = append(out, box)
	}
	return out
}

func (m *Memory) broadcast(targets []*mailbox, ev Event) {
	for _, box := range targets {
		box.push(ev)
	}
}

// mailbox delivers events to one watcher in order on its own goroutine so
// writers never block on, or re-enter, a listener.
type mailbox struct {
	mu       sync.Mutex
	queue    []Event
	fn       func(Event)
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newMailbox(fn func(Event)) *mailbox {
	return &mailbox{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (b *mailbox) push(ev Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *mailbox) run() {
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
			b.drain()
		}
	}
}

func (b *mailbox) drain() {
	for {
		select {
		case <-b.done:
			return
		default:
		}
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()
		b.fn(ev)
	}
}

// stop does not wait for an in-flight delivery; it may be called from inside
// the listener itself.
func (b *mailbox) stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}
