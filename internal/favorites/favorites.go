// Package favorites keeps a shopper's saved items: a membership list plus
// optional per-item metadata (custom name, folder, time added).
package favorites

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/gemcart/internal/syncstore"
	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

const (
	KeyItems    = "favorites"
	KeyMetadata = "favorites_meta"

	storeName = "favorites"
)

// Meta annotates one favorite. Metadata is optional: a member may have none,
// but metadata for a non-member is never returned.
type Meta struct {
	Slug       string    `json:"slug"`
	CustomName *string   `json:"customName,omitempty"`
	Folder     *string   `json:"folder,omitempty"`
	AddedAt    time.Time `json:"addedAt"`
}

func (m Meta) equal(other Meta) bool {
	return m.Slug == other.Slug &&
		ptrEqual(m.CustomName, other.CustomName) &&
		ptrEqual(m.Folder, other.Folder) &&
		m.AddedAt.Equal(other.AddedAt)
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AddOptions carries metadata recorded when an item is added.
type AddOptions struct {
	CustomName string
	Folder     string
}

// Favorites is the favorites store of one profile.
type Favorites struct {
	adapter *kv.Adapter
	log     *logger.Logger
	members *syncstore.ListStore
	now     func() time.Time

	mu sync.Mutex

	mmu  sync.Mutex
	meta []Meta
}

// Option customizes Favorites.
type Option func(*Favorites)

// WithClock overrides the time source used for AddedAt.
func WithClock(now func() time.Time) Option {
	return func(f *Favorites) {
		if now != nil {
			f.now = now
		}
	}
}

// New builds the favorites store over adapter.
func New(ctx context.Context, adapter *kv.Adapter, opts ...Option) *Favorites {
	f := &Favorites{
		adapter: adapter,
		log:     adapter.Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.members = syncstore.NewListStore(ctx, adapter, storeName, KeyItems,
		syncstore.WithDependentKeys(KeyMetadata),
		syncstore.WithReconciler(f.refreshMeta),
	)
	f.meta = f.visibleMeta(ctx)
	return f
}

func validMeta(entries []Meta) error {
	if entries == nil {
		return errors.New("metadata is null")
	}
	return nil
}

// readMeta returns stored metadata with blank or duplicate slugs dropped.
func (f *Favorites) readMeta(ctx context.Context) []Meta {
	entries, ok := kv.Read(ctx, f.adapter, KeyMetadata, validMeta)
	if !ok {
		return []Meta{}
	}
	out := make([]Meta, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry.Slug = strings.TrimSpace(entry.Slug)
		if entry.Slug == "" {
			continue
		}
		if _, dup := seen[entry.Slug]; dup {
			continue
		}
		seen[entry.Slug] = struct{}{}
		out = append(out, entry)
	}
	return out
}

// visibleMeta returns metadata of current members in membership order.
func (f *Favorites) visibleMeta(ctx context.Context) []Meta {
	members := f.members.Snapshot(ctx)
	bySlug := make(map[string]Meta)
	for _, entry := range f.readMeta(ctx) {
		bySlug[entry.Slug] = entry
	}
	out := make([]Meta, 0, len(members))
	for _, slug := range members {
		if entry, ok := bySlug[slug]; ok {
			out = append(out, entry)
		}
	}
	return out
}

func (f *Favorites) refreshMeta(ctx context.Context) bool {
	fresh := f.visibleMeta(ctx)
	f.mmu.Lock()
	defer f.mmu.Unlock()
	if slices.EqualFunc(fresh, f.meta, Meta.equal) {
		return false
	}
	f.meta = fresh
	return true
}

func (f *Favorites) writeMeta(ctx context.Context, entries []Meta) {
	if err := f.adapter.Write(ctx, KeyMetadata, entries); err != nil {
		ctx = f.log.WithFields(ctx, map[string]any{"store": storeName, "key": KeyMetadata})
		f.log.Error(ctx, "storage.write_failed", err)
	}
}

// finish notifies once when membership or visible metadata changed.
func (f *Favorites) finish(ctx context.Context, changed bool) {
	if f.refreshMeta(ctx) {
		changed = true
	}
	if changed {
		f.members.Notify()
	}
}

// Items returns the membership snapshot. The slice keeps its identity until
// membership changes and must not be modified.
func (f *Favorites) Items(ctx context.Context) []string {
	return f.members.Snapshot(ctx)
}

// Count returns the number of favorites.
func (f *Favorites) Count(ctx context.Context) int {
	return len(f.Items(ctx))
}

// IsFavorite reports whether slug is a member.
func (f *Favorites) IsFavorite(ctx context.Context, slug string) bool {
	return syncstore.Contains(f.Items(ctx), strings.TrimSpace(slug))
}

// Add makes slug a member and records its metadata. Re-adding an existing
// member keeps its AddedAt and only overrides the provided fields. It reports
// whether slug was newly added.
func (f *Favorites) Add(ctx context.Context, slug string, opts AddOptions) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	slug = strings.TrimSpace(slug)
	if slug == "" || !f.adapter.Available() {
		return false
	}
	return f.add(ctx, slug, opts)
}

func (f *Favorites) add(ctx context.Context, slug string, opts AddOptions) bool {
	current := f.members.Snapshot(ctx)
	added := !syncstore.Contains(current, slug)
	changed := f.members.Stage(ctx, syncstore.With(current, slug))

	entries := f.readMeta(ctx)
	idx := slices.IndexFunc(entries, func(m Meta) bool { return m.Slug == slug })
	if idx < 0 {
		entries = append(entries, Meta{Slug: slug, AddedAt: f.now().UTC()})
		idx = len(entries) - 1
	}
	if name := strings.TrimSpace(opts.CustomName); name != "" {
		entries[idx].CustomName = &name
	}
	if folder := strings.TrimSpace(opts.Folder); folder != "" {
		entries[idx].Folder = &folder
	}
	f.writeMeta(ctx, entries)

	f.finish(ctx, changed)
	return added
}

// Remove drops slug and its metadata. It reports whether slug was a member.
func (f *Favorites) Remove(ctx context.Context, slug string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	slug = strings.TrimSpace(slug)
	if slug == "" || !f.adapter.Available() {
		return false
	}
	return f.remove(ctx, slug)
}

func (f *Favorites) remove(ctx context.Context, slug string) bool {
	current := f.members.Snapshot(ctx)
	wasMember := syncstore.Contains(current, slug)
	changed := f.members.Stage(ctx, syncstore.Without(current, slug))

	entries := f.readMeta(ctx)
	pruned := slices.DeleteFunc(slices.Clone(entries), func(m Meta) bool { return m.Slug == slug })
	if len(pruned) != len(entries) {
		f.writeMeta(ctx, pruned)
	}

	f.finish(ctx, changed)
	return wasMember
}

// Toggle flips membership of slug and returns the new state.
func (f *Favorites) Toggle(ctx context.Context, slug string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	slug = strings.TrimSpace(slug)
	if slug == "" || !f.adapter.Available() {
		return false
	}
	if syncstore.Contains(f.members.Snapshot(ctx), slug) {
		f.remove(ctx, slug)
		return false
	}
	return f.add(ctx, slug, AddOptions{})
}

// Metadata returns metadata of current members, in membership order.
func (f *Favorites) Metadata(ctx context.Context) []Meta {
	return f.visibleMeta(ctx)
}

// MetaFor returns the metadata of one member.
func (f *Favorites) MetaFor(ctx context.Context, slug string) (Meta, bool) {
	slug = strings.TrimSpace(slug)
	for _, entry := range f.visibleMeta(ctx) {
		if entry.Slug == slug {
			return entry, true
		}
	}
	return Meta{}, false
}

// Rename sets the custom name of a member; an empty name clears it. It
// returns false when slug is not a member.
func (f *Favorites) Rename(ctx context.Context, slug, name string) bool {
	name = strings.TrimSpace(name)
	return f.annotate(ctx, slug, func(m *Meta) {
		m.CustomName = nil
		if name != "" {
			m.CustomName = &name
		}
	})
}

// Move files a member under folder; an empty folder clears it. It returns
// false when slug is not a member.
func (f *Favorites) Move(ctx context.Context, slug, folder string) bool {
	folder = strings.TrimSpace(folder)
	return f.annotate(ctx, slug, func(m *Meta) {
		m.Folder = nil
		if folder != "" {
			m.Folder = &folder
		}
	})
}

func (f *Favorites) annotate(ctx context.Context, slug string, apply func(*Meta)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	slug = strings.TrimSpace(slug)
	if slug == "" || !f.adapter.Available() {
		return false
	}
	if !syncstore.Contains(f.members.Snapshot(ctx), slug) {
		return false
	}
	entries := f.readMeta(ctx)
	idx := slices.IndexFunc(entries, func(m Meta) bool { return m.Slug == slug })
	if idx < 0 {
		entries = append(entries, Meta{Slug: slug, AddedAt: f.now().UTC()})
		idx = len(entries) - 1
	}
	apply(&entries[idx])
	f.writeMeta(ctx, entries)
	f.finish(ctx, false)
	return true
}

// Folders returns the distinct folder names in use, sorted.
func (f *Favorites) Folders(ctx context.Context) []string {
	seen := map[string]struct{}{}
	for _, entry := range f.visibleMeta(ctx) {
		if entry.Folder != nil && *entry.Folder != "" {
			seen[*entry.Folder] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for folder := range seen {
		out = append(out, folder)
	}
	sort.Strings(out)
	return out
}

// Clear removes every favorite and all metadata.
func (f *Favorites) Clear(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.adapter.Available() {
		return
	}
	changed := f.members.Stage(ctx, []string{})
	f.writeMeta(ctx, []Meta{})
	f.finish(ctx, changed)
}

// Subscribe registers fn for membership and metadata changes.
func (f *Favorites) Subscribe(fn syncstore.Listener) func() {
	return f.members.Subscribe(fn)
}

// Listening reports whether the cross-tab listener is bound.
func (f *Favorites) Listening() bool {
	return f.members.Listening()
}

// Close releases the storage watch.
func (f *Favorites) Close() {
	f.members.Close()
}
