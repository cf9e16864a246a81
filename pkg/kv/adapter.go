package kv

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/metrics"
	"github.com/google/uuid"
)

const scopeSeparator = ":"

// Adapter is one origin's view over a Backend: it namespaces keys by
// profile, encodes values as JSON and turns corrupt or foreign data into
// absence instead of errors.
type Adapter struct {
	backend Backend
	origin  string
	prefix  string
	log     *logger.Logger
	metrics *metrics.StoreMetrics
}

// Option customizes an Adapter.
type Option func(*Adapter)

func WithLogger(logg *logger.Logger) Option {
	return func(a *Adapter) {
		if logg != nil {
			a.log = logg
		}
	}
}

func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithOrigin pins the origin id instead of generating one.
func WithOrigin(origin string) Option {
	return func(a *Adapter) {
		if origin != "" {
			a.origin = origin
		}
	}
}

// NewAdapter builds an adapter with a fresh origin id. A nil backend yields
// an adapter that behaves as if no storage exists.
func NewAdapter(backend Backend, opts ...Option) *Adapter {
	if backend == nil {
		backend = Unavailable{}
	}
	a := &Adapter{
		backend: backend,
		origin:  uuid.NewString(),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Scope returns an adapter sharing backend and origin whose keys live under
// the given profile.
func (a *Adapter) Scope(profile string) *Adapter {
	if a == nil {
		return nil
	}
	scoped := *a
	scoped.prefix = a.prefix + strings.TrimSpace(profile) + scopeSeparator
	return &scoped
}

// Origin returns the id stamped on every change this adapter makes.
func (a *Adapter) Origin() string {
	if a == nil {
		return ""
	}
	return a.origin
}

// Available reports whether a real storage backend is attached.
func (a *Adapter) Available() bool {
	if a == nil || a.backend == nil {
		return false
	}
	_, none := a.backend.(Unavailable)
	return !none
}

// Logger returns the adapter's logger.
func (a *Adapter) Logger() *logger.Logger {
	if a == nil || a.log == nil {
		return logger.Nop()
	}
	return a.log
}

// Metrics returns the adapter's metrics sink, possibly nil.
func (a *Adapter) Metrics() *metrics.StoreMetrics {
	if a == nil {
		return nil
	}
	return a.metrics
}

func (a *Adapter) key(key string) string {
	return a.prefix + key
}

// ReadRaw returns the stored string for key. Backend failures are logged and
// reported as absence.
func (a *Adapter) ReadRaw(ctx context.Context, key string) (string, bool) {
	if a == nil || a.backend == nil {
		return "", false
	}
	value, ok, err := a.backend.Get(ctx, a.key(key))
	if err != nil {
		ctx = a.log.WithFields(ctx, map[string]any{"key": key, "error": err.Error()})
		a.log.Warn(ctx, "storage.read_failed")
		return "", false
	}
	return value, ok
}

// Read decodes the JSON value stored under key. Missing, undecodable or
// invalid values all yield the zero value and false.
func Read[T any](ctx context.Context, a *Adapter, key string, validate func(T) error) (T, bool) {
	var zero T
	raw, ok := a.ReadRaw(ctx, key)
	if !ok || strings.TrimSpace(raw) == "" {
		return zero, false
	}
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		a.discard(ctx, key, err)
		return zero, false
	}
	if validate != nil {
		if err := validate(value); err != nil {
			a.discard(ctx, key, err)
			return zero, false
		}
	}
	return value, true
}

func (a *Adapter) discard(ctx context.Context, key string, err error) {
	a.metrics.IncCorruptRead(key)
	ctx = a.log.WithFields(ctx, map[string]any{"key": key, "error": err.Error()})
	a.log.Warn(ctx, "storage.corrupt_value_discarded")
}

// Write encodes value as JSON and stores it under key.
func (a *Adapter) Write(ctx context.Context, key string, value any) error {
	if a == nil || a.backend == nil {
		return nil
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return a.WriteRaw(ctx, key, string(encoded))
}

// WriteRaw stores raw verbatim.
func (a *Adapter) WriteRaw(ctx context.Context, key, raw string) error {
	if a == nil || a.backend == nil {
		return nil
	}
	if err := a.backend.Set(ctx, a.key(key), raw, a.origin); err != nil {
		a.metrics.IncWriteFailure(key)
		return err
	}
	return nil
}

// Remove deletes key.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	if a == nil || a.backend == nil {
		return nil
	}
	if err := a.backend.Delete(ctx, a.key(key), a.origin); err != nil {
		a.metrics.IncWriteFailure(key)
		return err
	}
	return nil
}

// Watch delivers changes made by other origins to keys in this adapter's
// scope. Keys are reported without the scope prefix.
func (a *Adapter) Watch(ctx context.Context, fn func(Event)) (func(), error) {
	if a == nil || a.backend == nil {
		return func() {}, nil
	}
	return a.backend.Watch(ctx, func(ev Event) {
		if ev.Origin != "" && ev.Origin == a.origin {
			return
		}
		if !strings.HasPrefix(ev.Key, a.prefix) {
			return
		}
		fn(Event{Key: strings.TrimPrefix(ev.Key, a.prefix), Origin: ev.Origin})
	})
}

// Ping checks the backend.
func (a *Adapter) Ping(ctx context.Context) error {
	if a == nil || a.backend == nil {
		return nil
	}
	return a.backend.Ping(ctx)
}
