package syncstore

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/angelmondragon/gemcart/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testKey = "favorites"

func newTab(t *testing.T, backend kv.Backend, opts ...kv.Option) (*kv.Adapter, *ListStore) {
	t.Helper()
	adapter := kv.NewAdapter(backend, opts...)
	store := NewListStore(context.Background(), adapter, "favorites", testKey)
	t.Cleanup(store.Close)
	return adapter, store
}

func sameBacking(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b) && cap(a) == cap(b)
	}
	return &a[0] == &b[0]
}

func TestListStoreWriteDeduplicatesAndNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, store := newTab(t, mem)

	var calls int
	unsub := store.Subscribe(func() { calls++ })
	defer unsub()

	assert.True(t, store.Write(ctx, []string{"a", "b", "a"}))
	assert.Equal(t, []string{"a", "b"}, store.Snapshot(ctx))
	assert.Equal(t, 1, calls)

	assert.False(t, store.Write(ctx, []string{"a", "b"}))
	assert.Equal(t, 1, calls)
}

func TestListStoreSnapshotKeepsIdentityUntilChange(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, store := newTab(t, mem)

	store.Write(ctx, []string{"x"})
	first := store.Snapshot(ctx)
	second := store.Snapshot(ctx)
	assert.True(t, sameBacking(first, second))

	store.Write(ctx, []string{"x"})
	assert.True(t, sameBacking(first, store.Snapshot(ctx)))

	store.Write(ctx, []string{"x", "y"})
	third := store.Snapshot(ctx)
	assert.False(t, sameBacking(first, third))
	assert.Equal(t, []string{"x", "y"}, third)
}

func TestListStoreSnapshotPicksUpForeignWrites(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	other, _ := newTab(t, mem)
	_, store := newTab(t, mem)

	assert.Empty(t, store.Snapshot(ctx))
	require.NoError(t, other.Write(ctx, testKey, []string{"r1"}))
	assert.Equal(t, []string{"r1"}, store.Snapshot(ctx))
}

func TestListStoreLazilyBindsCrossTabListener(t *testing.T) {
	mem := kv.NewMemory()
	defer mem.Close()
	_, store := newTab(t, mem)

	assert.False(t, store.Listening())
	unsubA := store.Subscribe(func() {})
	unsubB := store.Subscribe(func() {})
	assert.True(t, store.Listening())

	unsubA()
	assert.True(t, store.Listening())
	unsubB()
	assert.False(t, store.Listening())
	assert.Zero(t, store.Subscribers())
}

func TestListStoreLateSubscriberReconciles(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	other, _ := newTab(t, mem)
	_, store := newTab(t, mem)

	assert.Empty(t, store.Cached())
	require.NoError(t, other.Write(ctx, testKey, []string{"late"}))

	var calls atomic.Int32
	unsub := store.Subscribe(func() { calls.Add(1) })
	defer unsub()

	assert.Equal(t, []string{"late"}, store.Cached())
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestListStoreCrossTabChangeNotifiesSubscriber(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	reg := prometheus.NewRegistry()
	m := metrics.NewStoreMetrics(reg)

	tabA, _ := newTab(t, mem)
	_, store := newTab(t, mem, kv.WithMetrics(m))

	var calls atomic.Int32
	unsub := store.Subscribe(func() { calls.Add(1) })
	defer unsub()

	require.NoError(t, tabA.Write(ctx, testKey, []string{"r1", "r2"}))

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"r1", "r2"}, store.Cached())
	count, err := testutil.GatherAndCount(reg, "store_cross_tab_syncs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListStoreIgnoresUnrelatedKeys(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	tabA, _ := newTab(t, mem)
	_, store := newTab(t, mem)

	var calls atomic.Int32
	unsub := store.Subscribe(func() { calls.Add(1) })
	defer unsub()

	require.NoError(t, tabA.Write(ctx, "unrelated", []string{"z"}))
	require.NoError(t, tabA.Write(ctx, testKey, []string{"a"}))

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestListStoreDependentKeysTriggerReconciler(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	tabA := kv.NewAdapter(mem)

	var refreshed atomic.Int32
	store := NewListStore(ctx, kv.NewAdapter(mem), "cart", "cart",
		WithDependentKeys("cart_quantities"),
		WithReconciler(func(context.Context) bool {
			refreshed.Add(1)
			return true
		}),
	)
	defer store.Close()

	var calls atomic.Int32
	unsub := store.Subscribe(func() { calls.Add(1) })
	defer unsub()
	base := calls.Load()

	require.NoError(t, tabA.Write(ctx, "cart_quantities", map[string]int{"a": 2}))
	require.Eventually(t, func() bool { return calls.Load() == base+1 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, refreshed.Load(), int32(2))
}

func TestListStoreRecoversFromCorruptValue(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	adapter, store := newTab(t, mem)

	require.NoError(t, adapter.WriteRaw(ctx, testKey, "{broken"))
	assert.Empty(t, store.Snapshot(ctx))

	require.NoError(t, adapter.WriteRaw(ctx, testKey, "null"))
	assert.Empty(t, store.Snapshot(ctx))

	assert.True(t, store.Write(ctx, []string{"fresh"}))
	assert.Equal(t, []string{"fresh"}, store.Snapshot(ctx))
}

func TestListStoreWithoutStorage(t *testing.T) {
	ctx := context.Background()
	_, store := newTab(t, nil)

	var calls int
	unsub := store.Subscribe(func() { calls++ })
	defer unsub()

	assert.False(t, store.Write(ctx, []string{"a"}))
	assert.Empty(t, store.Snapshot(ctx))
	assert.Zero(t, calls)
}
