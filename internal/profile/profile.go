// Package profile groups the client-state stores of one shopper profile and
// keeps them alive while they are in use.
package profile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/gemcart/internal/address"
	"github.com/angelmondragon/gemcart/internal/cart"
	"github.com/angelmondragon/gemcart/internal/favorites"
	"github.com/angelmondragon/gemcart/internal/feedback"
	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"go.uber.org/multierr"
)

// Store names reported to Watch callbacks.
const (
	StoreCart      = "cart"
	StoreFavorites = "favorites"
	StoreFeedback  = "feedback"
	StoreAddress   = "address"
)

// Profile is one shopper's state, scoped to its own key namespace.
type Profile struct {
	ID        string
	Adapter   *kv.Adapter
	Cart      *cart.Cart
	Favorites *favorites.Favorites
	Feedback  *feedback.Store
	Address   address.Service

	mu       sync.Mutex
	watchers int
}

func newProfile(ctx context.Context, id string, adapter *kv.Adapter) *Profile {
	return &Profile{
		ID:        id,
		Adapter:   adapter,
		Cart:      cart.New(ctx, adapter),
		Favorites: favorites.New(ctx, adapter),
		Feedback:  feedback.New(ctx, adapter),
		Address:   address.NewService(adapter),
	}
}

// Watch calls fn with the store name whenever a store of this profile
// changes. The returned function unsubscribes from all of them.
func (p *Profile) Watch(fn func(store string)) func() {
	unsubs := []func(){
		p.Cart.Subscribe(func() { fn(StoreCart) }),
		p.Favorites.Subscribe(func() { fn(StoreFavorites) }),
		p.Feedback.Subscribe(func() { fn(StoreFeedback) }),
		p.Address.Subscribe(func() { fn(StoreAddress) }),
	}
	p.mu.Lock()
	p.watchers++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, unsub := range unsubs {
				unsub()
			}
			p.mu.Lock()
			p.watchers--
			p.mu.Unlock()
		})
	}
}

// Watched reports whether any Watch subscription is live.
func (p *Profile) Watched() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchers > 0
}

// Close releases every store's storage watch.
func (p *Profile) Close() {
	p.Cart.Close()
	p.Favorites.Close()
	p.Feedback.Close()
}

type entry struct {
	profile  *Profile
	lastUsed time.Time
}

// Registry hands out profiles over one shared adapter, building each on
// first use.
type Registry struct {
	root    *kv.Adapter
	log     *logger.Logger
	now     func() time.Time
	closers []func() error

	mu       sync.Mutex
	profiles map[string]*entry
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for idle tracking.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCloser registers a resource released by Close, such as the storage
// backend or the connections beneath it.
func WithCloser(fn func() error) Option {
	return func(r *Registry) {
		if fn != nil {
			r.closers = append(r.closers, fn)
		}
	}
}

// NewRegistry builds a registry over root, an unscoped adapter.
func NewRegistry(root *kv.Adapter, opts ...Option) *Registry {
	r := &Registry{
		root:     root,
		log:      root.Logger(),
		now:      time.Now,
		profiles: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the profile with id, building it on first use.
func (r *Registry) Get(ctx context.Context, id string) (*Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.profiles[id]; ok {
		e.lastUsed = r.now()
		return e.profile, nil
	}
	p := newProfile(ctx, id, r.root.Scope(id))
	r.profiles[id] = &entry{profile: p, lastUsed: r.now()}
	r.log.Debug(r.log.WithProfileID(ctx, id), "profile.loaded")
	return p, nil
}

// Len returns the number of loaded profiles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.profiles)
}

// EvictIdle unloads profiles that nobody watches and that were not used for
// at least idle. Their persisted state is untouched.
func (r *Registry) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var evicted []*Profile
	for id, e := range r.profiles {
		if e.profile.Watched() || e.lastUsed.After(cutoff) {
			continue
		}
		delete(r.profiles, id)
		evicted = append(evicted, e.profile)
	}
	r.mu.Unlock()

	for _, p := range evicted {
		p.Close()
		r.log.Debug(r.log.WithProfileID(ctx, p.ID), "profile.evicted")
	}
	return len(evicted)
}

// Close unloads every profile and releases the registered resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	profiles := r.profiles
	r.profiles = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range profiles {
		e.profile.Close()
	}
	var errs error
	for _, closeFn := range r.closers {
		errs = multierr.Append(errs, closeFn())
	}
	return errs
}
