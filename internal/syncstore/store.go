package syncstore

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/metrics"
)

// ListStore caches one persisted list of item ids (cart or favorites
// membership) and notifies subscribers when its content changes.
//
// Snapshot hands out the cached slice itself and only swaps it when the
// content changes, so callers may compare snapshots by identity. Callers must
// treat returned slices as read-only.
type ListStore struct {
	name    string
	key     string
	adapter *kv.Adapter
	log     *logger.Logger
	metrics *metrics.StoreMetrics

	mu       sync.Mutex
	snapshot []string

	notifier   *Notifier
	crossTab   *CrossTab
	dependents map[string]struct{}
	reconciler func(ctx context.Context) bool
	normalize  func(ctx context.Context, items []string) []string
}

// Option customizes a ListStore.
type Option func(*ListStore)

// WithDependentKeys makes changes to other keys trigger a reconcile, e.g.
// the cart quantity map that drives cart membership.
func WithDependentKeys(keys ...string) Option {
	return func(s *ListStore) {
		for _, key := range keys {
			s.dependents[key] = struct{}{}
		}
	}
}

// WithReconciler refreshes state that lives next to the list. It returns
// true when that state changed and subscribers must hear about it.
func WithReconciler(fn func(ctx context.Context) bool) Option {
	return func(s *ListStore) {
		s.reconciler = fn
	}
}

// WithNormalizer rewrites the persisted list on every read before it is
// canonicalized, e.g. to derive cart membership from quantities.
func WithNormalizer(fn func(ctx context.Context, items []string) []string) Option {
	return func(s *ListStore) {
		s.normalize = fn
	}
}

// NewListStore builds a store for key, named for logs and metrics.
func NewListStore(ctx context.Context, adapter *kv.Adapter, name, key string, opts ...Option) *ListStore {
	s := &ListStore{
		name:       name,
		key:        key,
		adapter:    adapter,
		log:        adapter.Logger(),
		metrics:    adapter.Metrics(),
		dependents: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notifier = NewNotifier(s.activate, s.deactivate)
	s.crossTab = NewCrossTab(adapter, s.owns, s.HandleStorageEvent, func() bool { return s.notifier.Len() > 0 })
	s.snapshot = s.read(ctx)
	return s
}

// Name returns the store name used in logs and metrics.
func (s *ListStore) Name() string {
	return s.name
}

// Key returns the storage key of the list.
func (s *ListStore) Key() string {
	return s.key
}

func (s *ListStore) owns(key string) bool {
	if key == s.key {
		return true
	}
	_, ok := s.dependents[key]
	return ok
}

func validateIDs(items []string) error {
	if items == nil {
		return errors.New("list is null")
	}
	return nil
}

// read returns the canonical persisted list; absent or corrupt reads as empty.
func (s *ListStore) read(ctx context.Context) []string {
	items, ok := kv.Read(ctx, s.adapter, s.key, validateIDs)
	if !ok {
		items = nil
	}
	if s.normalize != nil {
		items = s.normalize(ctx, items)
	}
	return Canonicalize(items)
}

// Snapshot returns the current list. It re-reads storage and replaces the
// cache only when the persisted content differs.
func (s *ListStore) Snapshot(ctx context.Context) []string {
	fresh := s.read(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !Equal(fresh, s.snapshot) {
		s.snapshot = fresh
	}
	return s.snapshot
}

// Cached returns the cached list without touching storage.
func (s *ListStore) Cached() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Write replaces the list. Input is deduplicated; the value is persisted
// even when unchanged, and subscribers are notified once only when the
// content changed. It reports whether it changed.
func (s *ListStore) Write(ctx context.Context, next []string) bool {
	changed := s.Stage(ctx, next)
	if changed {
		s.Notify()
	}
	return changed
}

// Stage is Write without the notification, for operations that touch
// several keys and notify once at the end.
func (s *ListStore) Stage(ctx context.Context, next []string) bool {
	if !s.adapter.Available() {
		return false
	}
	canonical := Canonicalize(next)

	s.mu.Lock()
	changed := !Equal(canonical, s.snapshot)
	if changed {
		s.snapshot = canonical
	}
	s.mu.Unlock()

	if err := s.adapter.Write(ctx, s.key, canonical); err != nil {
		s.log.Error(s.log.WithStore(ctx, s.name, s.key), "storage.write_failed", err)
	}
	return changed
}

// Notify fires every subscriber once.
func (s *ListStore) Notify() {
	s.metrics.IncNotification(s.name)
	s.notifier.Emit()
}

// Subscribe registers fn for change notifications. The first subscriber
// binds the cross-tab listener and reconciles with storage, so it never
// starts from a stale snapshot.
func (s *ListStore) Subscribe(fn Listener) func() {
	return s.notifier.Subscribe(fn)
}

// Subscribers returns the number of live subscriptions.
func (s *ListStore) Subscribers() int {
	return s.notifier.Len()
}

// Listening reports whether the cross-tab listener is bound.
func (s *ListStore) Listening() bool {
	return s.crossTab.Bound()
}

func (s *ListStore) activate() {
	s.crossTab.Sync()
	s.Reconcile(context.Background())
}

func (s *ListStore) deactivate() {
	s.crossTab.Sync()
}

// Reconcile re-reads storage, refreshes the cache and any dependent state,
// and notifies when anything changed.
func (s *ListStore) Reconcile(ctx context.Context) bool {
	fresh := s.read(ctx)

	s.mu.Lock()
	changed := !Equal(fresh, s.snapshot)
	if changed {
		s.snapshot = fresh
	}
	s.mu.Unlock()

	if s.reconciler != nil && s.reconciler(ctx) {
		changed = true
	}
	if changed {
		s.Notify()
	}
	return changed
}

// HandleStorageEvent reacts to a change made by another tab. The event only
// names the key; the full state is always re-read from storage.
func (s *ListStore) HandleStorageEvent(ctx context.Context, ev kv.Event) {
	if !s.owns(ev.Key) {
		return
	}
	if s.Reconcile(ctx) {
		s.metrics.IncCrossTabSync(s.name)
		ctx = s.log.WithField(s.log.WithStore(ctx, s.name, ev.Key), "origin", ev.Origin)
		s.log.Debug(ctx, "store.cross_tab_synced")
	}
}

// Close unbinds the cross-tab listener.
func (s *ListStore) Close() {
	s.crossTab.Close()
}
