// Package feedback stores product reviews in two redundant indexes, one per
// item and one global, and keeps them in agreement on every change.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/gemcart/internal/syncstore"
	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
	"github.com/angelmondragon/gemcart/pkg/metrics"
	"github.com/angelmondragon/gemcart/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	KeyPrefix = "product_feedback_"
	KeyAll    = KeyPrefix + "all"

	storeName = "feedback"
	reserved  = "all"
)

// ItemKey returns the per-item index key.
func ItemKey(itemID string) string {
	return KeyPrefix + itemID
}

// Store is the feedback store of one profile.
type Store struct {
	adapter *kv.Adapter
	log     *logger.Logger
	metrics *metrics.StoreMetrics
	now     func() time.Time
	suffix  func() string

	notifier *syncstore.Notifier
	crossTab *syncstore.CrossTab

	mu sync.Mutex

	cmu    sync.Mutex
	cached []Feedback
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a feedback store over adapter.
func New(ctx context.Context, adapter *kv.Adapter, opts ...Option) *Store {
	s := &Store{
		adapter: adapter,
		log:     adapter.Logger(),
		metrics: adapter.Metrics(),
		now:     time.Now,
		suffix:  randomSuffix,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notifier = syncstore.NewNotifier(s.activate, s.deactivate)
	s.crossTab = syncstore.NewCrossTab(adapter,
		func(key string) bool { return strings.HasPrefix(key, KeyPrefix) },
		s.handleStorageEvent,
		func() bool { return s.notifier.Len() > 0 },
	)
	s.cached = s.readList(ctx, KeyAll, "")
	return s
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func validList(items []Feedback) error {
	if items == nil {
		return errors.New("feedback list is null")
	}
	return nil
}

// readList returns the valid records stored under key. For a per-item key,
// records of other items are dropped too.
func (s *Store) readList(ctx context.Context, key, itemID string) []Feedback {
	items, ok := kv.Read(ctx, s.adapter, key, validList)
	if !ok {
		return []Feedback{}
	}
	out := make([]Feedback, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if !validation.Valid(item) {
			continue
		}
		if itemID != "" && item.ItemID != itemID {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

func (s *Store) writeList(ctx context.Context, key string, items []Feedback) {
	if err := s.adapter.Write(ctx, key, items); err != nil {
		ctx = s.log.WithFields(ctx, map[string]any{"store": storeName, "key": key})
		s.log.Error(ctx, "storage.write_failed", err)
	}
}

// Add validates in and appends the new review to both indexes. Without
// storage the review is returned but not kept.
func (s *Store) Add(ctx context.Context, in Input) (Feedback, error) {
	in.ItemID = strings.TrimSpace(in.ItemID)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.Text = strings.TrimSpace(in.Text)
	if err := validation.Struct(in); err != nil {
		return Feedback{}, err
	}
	if in.ItemID == reserved {
		return Feedback{}, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"itemId": "is reserved"})
	}

	now := s.now().UTC()
	record := Feedback{
		ID:           fmt.Sprintf("%s-%d-%s", in.ItemID, now.UnixMilli(), s.suffix()),
		ItemID:       in.ItemID,
		CustomerName: in.CustomerName,
		Rating:       in.Rating,
		Text:         in.Text,
		ImageData:    in.ImageData,
		CreatedAt:    now,
	}
	if !s.adapter.Available() {
		return record, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	perItem := append(s.readList(ctx, ItemKey(record.ItemID), record.ItemID), record)
	all := append(s.readList(ctx, KeyAll, ""), record)
	s.writeList(ctx, ItemKey(record.ItemID), perItem)
	s.writeList(ctx, KeyAll, all)
	s.finish(ctx)
	return record, nil
}

// Update applies patch to the review with id in both indexes. It returns
// false when the global index has no such review.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Feedback, bool, error) {
	if err := validation.Struct(patch); err != nil {
		return Feedback{}, false, err
	}
	if !s.adapter.Available() {
		return Feedback{}, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.readList(ctx, KeyAll, "")
	idx := slices.IndexFunc(all, func(f Feedback) bool { return f.ID == id })
	if idx < 0 {
		return Feedback{}, false, nil
	}

	record := all[idx]
	if patch.CustomerName != nil {
		record.CustomerName = strings.TrimSpace(*patch.CustomerName)
	}
	if patch.Rating != nil {
		record.Rating = *patch.Rating
	}
	if patch.Text != nil {
		record.Text = strings.TrimSpace(*patch.Text)
	}
	if patch.ImageData != nil {
		record.ImageData = *patch.ImageData
	}
	updated := s.now().UTC()
	record.UpdatedAt = &updated
	if err := validation.Struct(record); err != nil {
		return Feedback{}, false, err
	}

	all[idx] = record
	perItem := s.readList(ctx, ItemKey(record.ItemID), record.ItemID)
	if i := slices.IndexFunc(perItem, func(f Feedback) bool { return f.ID == id }); i >= 0 {
		perItem[i] = record
	} else {
		perItem = append(perItem, record)
	}
	s.writeList(ctx, ItemKey(record.ItemID), perItem)
	s.writeList(ctx, KeyAll, all)
	s.finish(ctx)
	return record, true, nil
}

// Delete removes the review with id from both indexes. It returns false
// when the global index has no such review.
func (s *Store) Delete(ctx context.Context, id string) bool {
	if !s.adapter.Available() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.readList(ctx, KeyAll, "")
	idx := slices.IndexFunc(all, func(f Feedback) bool { return f.ID == id })
	if idx < 0 {
		return false
	}
	record := all[idx]
	all = slices.Delete(all, idx, idx+1)

	perItem := s.readList(ctx, ItemKey(record.ItemID), record.ItemID)
	perItem = slices.DeleteFunc(perItem, func(f Feedback) bool { return f.ID == id })
	s.writeList(ctx, ItemKey(record.ItemID), perItem)
	s.writeList(ctx, KeyAll, all)
	s.finish(ctx)
	return true
}

// ListByItem returns the reviews of one item, newest first.
func (s *Store) ListByItem(ctx context.Context, itemID string) []Feedback {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" || itemID == reserved {
		return []Feedback{}
	}
	return newestFirst(s.readList(ctx, ItemKey(itemID), itemID))
}

// ListAll returns every review, newest first.
func (s *Store) ListAll(ctx context.Context) []Feedback {
	return newestFirst(s.readList(ctx, KeyAll, ""))
}

func newestFirst(items []Feedback) []Feedback {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items
}

// Summary returns the review count and average rating of an item, rounded
// to one decimal place.
func (s *Store) Summary(ctx context.Context, itemID string) Summary {
	items := s.ListByItem(ctx, itemID)
	summary := Summary{ItemID: strings.TrimSpace(itemID), Count: len(items), Average: decimal.Zero}
	if len(items) == 0 {
		return summary
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromInt(int64(item.Rating)))
	}
	summary.Average = total.Div(decimal.NewFromInt(int64(len(items)))).Round(1)
	return summary
}

// Subscribe registers fn for changes to any review, including changes made
// through other adapters.
func (s *Store) Subscribe(fn syncstore.Listener) func() {
	return s.notifier.Subscribe(fn)
}

// Listening reports whether the cross-tab listener is bound.
func (s *Store) Listening() bool {
	return s.crossTab.Bound()
}

// Close releases the storage watch.
func (s *Store) Close() {
	s.crossTab.Close()
}

func (s *Store) activate() {
	s.crossTab.Sync()
	s.reconcile(context.Background())
}

func (s *Store) deactivate() {
	s.crossTab.Sync()
}

func (s *Store) handleStorageEvent(ctx context.Context, ev kv.Event) {
	if s.reconcile(ctx) {
		s.metrics.IncCrossTabSync(storeName)
		ctx = s.log.WithFields(ctx, map[string]any{"store": storeName, "key": ev.Key, "origin": ev.Origin})
		s.log.Debug(ctx, "store.cross_tab_synced")
	}
}

// finish refreshes the cache after a local change and notifies.
func (s *Store) finish(ctx context.Context) {
	s.refresh(ctx)
	s.notify()
}

func (s *Store) refresh(ctx context.Context) bool {
	fresh := s.readList(ctx, KeyAll, "")
	s.cmu.Lock()
	defer s.cmu.Unlock()
	if slices.EqualFunc(fresh, s.cached, Feedback.equal) {
		return false
	}
	s.cached = fresh
	return true
}

func (s *Store) reconcile(ctx context.Context) bool {
	if !s.refresh(ctx) {
		return false
	}
	s.notify()
	return true
}

func (s *Store) notify() {
	s.metrics.IncNotification(storeName)
	s.notifier.Emit()
}
