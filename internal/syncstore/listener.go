package syncstore

import (
	"context"
	"sync"

	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

// CrossTab owns the storage watch for one store. The watch exists only while
// the store has subscribers.
type CrossTab struct {
	adapter *kv.Adapter
	match   func(key string) bool
	handle  func(ctx context.Context, ev kv.Event)
	active  func() bool
	log     *logger.Logger

	mu   sync.Mutex
	stop func()
}

// NewCrossTab wires a listener that forwards matching events to handle.
// active reports whether anyone is subscribed.
func NewCrossTab(adapter *kv.Adapter, match func(string) bool, handle func(context.Context, kv.Event), active func() bool) *CrossTab {
	return &CrossTab{
		adapter: adapter,
		match:   match,
		handle:  handle,
		active:  active,
		log:     adapter.Logger(),
	}
}

// Sync binds or unbinds the watch to match the current subscriber count.
// Safe to call any number of times from any goroutine.
func (c *CrossTab) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()

	want := c.active()
	switch {
	case want && c.stop == nil:
		ctx := context.Background()
		stop, err := c.adapter.Watch(ctx, func(ev kv.Event) {
			if !c.match(ev.Key) {
				return
			}
			c.handle(ctx, ev)
		})
		if err != nil {
			c.log.Error(ctx, "storage.watch_failed", err)
			return
		}
		c.stop = stop
	case !want && c.stop != nil:
		c.stop()
		c.stop = nil
	}
}

// Bound reports whether the storage watch is currently registered.
func (c *CrossTab) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// Close drops the watch regardless of subscribers.
func (c *CrossTab) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}
