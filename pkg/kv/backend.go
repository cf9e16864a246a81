// Package kv is the persistent key-value layer behind the storefront's
// client state. A Backend plays the role of the shopper's local storage and
// an Adapter is one tab's typed, fault-tolerant view of it.
package kv

import (
	"context"
)

// Event signals that a key changed. Origin identifies the adapter that made
// the change; it is empty when the backend cannot tell.
type Event struct {
	Key    string `json:"key"`
	Origin string `json:"origin,omitempty"`
}

// Backend stores raw string values and broadcasts change events.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value, origin string) error
	Delete(ctx context.Context, key, origin string) error
	// Watch delivers change events until stop is called. Delivery happens on
	// a backend goroutine, never inside Set or Delete.
	Watch(ctx context.Context, fn func(Event)) (stop func(), err error)
	Ping(ctx context.Context) error
	Close() error
}

// Unavailable is the backend used when there is no storage context at all.
// Reads report absence and writes are dropped.
type Unavailable struct{}

func (Unavailable) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Unavailable) Set(context.Context, string, string, string) error { return nil }
func (Unavailable) Delete(context.Context, string, string) error      { return nil }
func (Unavailable) Ping(context.Context) error                        { return nil }
func (Unavailable) Close() error                                      { return nil }

func (Unavailable) Watch(context.Context, func(Event)) (func(), error) {
	return func() {}, nil
}
