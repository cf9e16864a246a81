// Package cart tracks what a shopper intends to buy: an ordered membership
// list plus a quantity per item, persisted under separate keys and kept
// mutually consistent.
package cart

import (
	"context"
	"maps"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/gemcart/internal/syncstore"
	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/logger"
)

const (
	KeyItems      = "cart"
	KeyQuantities = "cart_quantities"
	KeyAddedAt    = "cart_added_at"

	storeName = "cart"
)

// Cart is the quantity index of one profile. The quantity map is the source
// of truth: an item is a member exactly when its quantity is at least one,
// whatever the persisted membership list says.
type Cart struct {
	adapter *kv.Adapter
	log     *logger.Logger
	members *syncstore.ListStore

	// mu serializes logical operations so concurrent callers in this process
	// never interleave the two writes of one operation.
	mu sync.Mutex

	qmu        sync.Mutex
	quantities map[string]int
}

// New builds the cart over adapter.
func New(ctx context.Context, adapter *kv.Adapter) *Cart {
	c := &Cart{
		adapter: adapter,
		log:     adapter.Logger(),
	}
	c.quantities = c.readQuantities(ctx)
	c.members = syncstore.NewListStore(ctx, adapter, storeName, KeyItems,
		syncstore.WithDependentKeys(KeyQuantities, KeyAddedAt),
		syncstore.WithNormalizer(c.normalize),
		syncstore.WithReconciler(c.refreshQuantities),
	)
	return c
}

// FloorQuantity turns a client supplied number into a quantity: fractions are
// floored and anything negative or not a number becomes zero.
func FloorQuantity(value float64) int {
	if math.IsNaN(value) || value <= 0 {
		return 0
	}
	if value >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(value))
}

func validQuantities(m map[string]float64) error {
	if m == nil {
		return errNullMap
	}
	return nil
}

// readQuantities returns the persisted map without blank ids or
// non-positive entries.
func (c *Cart) readQuantities(ctx context.Context) map[string]int {
	raw, ok := kv.Read(ctx, c.adapter, KeyQuantities, validQuantities)
	out := make(map[string]int, len(raw))
	if !ok {
		return out
	}
	for id, value := range raw {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if qty := FloorQuantity(value); qty > 0 {
			out[id] = qty
		}
	}
	return out
}

func (c *Cart) normalize(ctx context.Context, items []string) []string {
	return deriveMembership(c.readQuantities(ctx), items)
}

// deriveMembership keeps listed items with a positive quantity and appends
// quantified items missing from the list in id order.
func deriveMembership(quantities map[string]int, items []string) []string {
	out := make([]string, 0, len(quantities))
	listed := make(map[string]struct{}, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item)
		if quantities[id] > 0 {
			out = append(out, id)
		}
		listed[id] = struct{}{}
	}
	var missing []string
	for id := range quantities {
		if _, ok := listed[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return append(out, missing...)
}

func (c *Cart) refreshQuantities(ctx context.Context) bool {
	fresh := c.readQuantities(ctx)
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if maps.Equal(fresh, c.quantities) {
		return false
	}
	c.quantities = fresh
	return true
}

// Quantity returns the quantity of id, zero when absent.
func (c *Cart) Quantity(ctx context.Context, id string) int {
	return c.readQuantities(ctx)[strings.TrimSpace(id)]
}

// Quantities returns a copy of the quantity map.
func (c *Cart) Quantities(ctx context.Context) map[string]int {
	return c.readQuantities(ctx)
}

// Items returns the membership snapshot. The slice keeps its identity until
// membership changes and must not be modified.
func (c *Cart) Items(ctx context.Context) []string {
	return c.members.Snapshot(ctx)
}

// Count returns the total number of units in the cart.
func (c *Cart) Count(ctx context.Context) int {
	total := 0
	for _, qty := range c.readQuantities(ctx) {
		total += qty
	}
	return total
}

// SetQuantity stores max(0, qty) for id and updates membership to match,
// notifying subscribers once. It returns the stored quantity.
func (c *Cart) SetQuantity(ctx context.Context, id string, qty int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set(ctx, id, func(int) int { return qty })
}

// Increment adds one unit of id.
func (c *Cart) Increment(ctx context.Context, id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set(ctx, id, func(current int) int { return current + 1 })
}

// Decrement removes one unit of id, never going below zero.
func (c *Cart) Decrement(ctx context.Context, id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set(ctx, id, func(current int) int { return current - 1 })
}

// Remove drops id from the cart.
func (c *Cart) Remove(ctx context.Context, id string) {
	c.SetQuantity(ctx, id, 0)
}

func (c *Cart) set(ctx context.Context, id string, next func(current int) int) int {
	id = strings.TrimSpace(id)
	if id == "" || !c.adapter.Available() {
		return 0
	}

	quantities := c.readQuantities(ctx)
	qty := max(0, next(quantities[id]))
	if qty == 0 {
		delete(quantities, id)
	} else {
		quantities[id] = qty
	}

	// The quantity map goes first: membership is derived from it on read, so
	// an interrupted operation still reads back consistent.
	if err := c.adapter.Write(ctx, KeyQuantities, quantities); err != nil {
		c.logWriteFailure(ctx, KeyQuantities, err)
	}

	listed, _ := kv.Read(ctx, c.adapter, KeyItems, validIDs)
	current := syncstore.Canonicalize(listed)
	membership := syncstore.Without(current, id)
	if qty > 0 {
		membership = syncstore.With(current, id)
	}
	changed := c.members.Stage(ctx, deriveMembership(quantities, membership))

	if qty == 0 {
		c.pruneAddedAt(ctx, id)
	}
	if c.refreshQuantities(ctx) {
		changed = true
	}
	if changed {
		c.members.Notify()
	}
	return qty
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.adapter.Available() {
		return
	}
	if err := c.adapter.Write(ctx, KeyQuantities, map[string]int{}); err != nil {
		c.logWriteFailure(ctx, KeyQuantities, err)
	}
	changed := c.members.Stage(ctx, []string{})
	if err := c.adapter.Remove(ctx, KeyAddedAt); err != nil {
		c.logWriteFailure(ctx, KeyAddedAt, err)
	}
	if c.refreshQuantities(ctx) {
		changed = true
	}
	if changed {
		c.members.Notify()
	}
}

// AddedAt returns the legacy timestamp recorded when id was first added.
func (c *Cart) AddedAt(ctx context.Context, id string) (time.Time, bool) {
	stamps, ok := kv.Read[map[string]string](ctx, c.adapter, KeyAddedAt, nil)
	if !ok {
		return time.Time{}, false
	}
	raw, ok := stamps[strings.TrimSpace(id)]
	if !ok {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

func (c *Cart) pruneAddedAt(ctx context.Context, id string) {
	stamps, ok := kv.Read[map[string]string](ctx, c.adapter, KeyAddedAt, nil)
	if !ok {
		return
	}
	if _, present := stamps[id]; !present {
		return
	}
	delete(stamps, id)
	if err := c.adapter.Write(ctx, KeyAddedAt, stamps); err != nil {
		c.logWriteFailure(ctx, KeyAddedAt, err)
	}
}

// Subscribe registers fn for cart changes, including quantity-only changes
// and changes made through other adapters.
func (c *Cart) Subscribe(fn syncstore.Listener) func() {
	return c.members.Subscribe(fn)
}

// Listening reports whether the cross-tab listener is bound.
func (c *Cart) Listening() bool {
	return c.members.Listening()
}

// Close releases the storage watch.
func (c *Cart) Close() {
	c.members.Close()
}

func (c *Cart) logWriteFailure(ctx context.Context, key string, err error) {
	ctx = c.log.WithFields(ctx, map[string]any{"store": storeName, "key": key})
	c.log.Error(ctx, "storage.write_failed", err)
}
