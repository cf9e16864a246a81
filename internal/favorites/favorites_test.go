package favorites

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newFavorites(t *testing.T, backend kv.Backend) (*kv.Adapter, *Favorites) {
	t.Helper()
	adapter := kv.NewAdapter(backend)
	f := New(context.Background(), adapter, WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(f.Close)
	return adapter, f
}

func TestAddRemove(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, f := newFavorites(t, mem)

	assert.True(t, f.Add(ctx, "ruby-ring", AddOptions{CustomName: "Anniversary", Folder: "Gifts"}))
	assert.True(t, f.Add(ctx, "pearl-studs", AddOptions{}))
	assert.Equal(t, []string{"ruby-ring", "pearl-studs"}, f.Items(ctx))
	assert.Equal(t, 2, f.Count(ctx))
	assert.True(t, f.IsFavorite(ctx, "ruby-ring"))

	meta, ok := f.MetaFor(ctx, "ruby-ring")
	require.True(t, ok)
	require.NotNil(t, meta.CustomName)
	assert.Equal(t, "Anniversary", *meta.CustomName)
	assert.Equal(t, fixedNow, meta.AddedAt)

	assert.True(t, f.Remove(ctx, "ruby-ring"))
	assert.False(t, f.Remove(ctx, "ruby-ring"))
	_, ok = f.MetaFor(ctx, "ruby-ring")
	assert.False(t, ok)
	assert.Equal(t, []string{"pearl-studs"}, f.Items(ctx))
}

func TestAddReportsOnlyNewMembers(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, f := newFavorites(t, mem)

	assert.True(t, f.Add(ctx, "ring", AddOptions{}))
	assert.False(t, f.Add(ctx, "ring", AddOptions{Folder: "Gifts"}))
	assert.Equal(t, []string{"ring"}, f.Items(ctx))

	meta, ok := f.MetaFor(ctx, "ring")
	require.True(t, ok)
	require.NotNil(t, meta.Folder)
	assert.Equal(t, "Gifts", *meta.Folder)
}

func TestRemovePrunesStoredMetadata(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	adapter, f := newFavorites(t, mem)

	f.Add(ctx, "a", AddOptions{Folder: "x"})
	f.Add(ctx, "b", AddOptions{})
	f.Remove(ctx, "a")

	stored, ok := kv.Read[[]Meta](ctx, adapter, KeyMetadata, nil)
	require.True(t, ok)
	require.Len(t, stored, 1)
	assert.Equal(t, "b", stored[0].Slug)
}

func TestMetadataWithoutMembershipIsHidden(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	adapter, f := newFavorites(t, mem)

	require.NoError(t, adapter.Write(ctx, KeyItems, []string{"kept"}))
	require.NoError(t, adapter.Write(ctx, KeyMetadata, []Meta{
		{Slug: "orphan", AddedAt: fixedNow},
		{Slug: "kept", AddedAt: fixedNow},
		{Slug: "", AddedAt: fixedNow},
	}))

	meta := f.Metadata(ctx)
	require.Len(t, meta, 1)
	assert.Equal(t, "kept", meta[0].Slug)
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, f := newFavorites(t, mem)

	var calls int
	unsub := f.Subscribe(func() { calls++ })
	defer unsub()

	assert.True(t, f.Toggle(ctx, "bangle"))
	assert.False(t, f.Toggle(ctx, "bangle"))
	assert.Empty(t, f.Items(ctx))
	assert.Equal(t, 2, calls)
}

func TestRenameAndMove(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, f := newFavorites(t, mem)

	assert.False(t, f.Rename(ctx, "missing", "x"))
	assert.False(t, f.Move(ctx, "missing", "x"))

	f.Add(ctx, "locket", AddOptions{})
	f.Add(ctx, "chain", AddOptions{Folder: "Wedding"})

	var calls int
	unsub := f.Subscribe(func() { calls++ })
	defer unsub()

	assert.True(t, f.Rename(ctx, "locket", "  Mum's locket "))
	assert.True(t, f.Move(ctx, "locket", "Birthday"))
	assert.Equal(t, 2, calls)

	meta, ok := f.MetaFor(ctx, "locket")
	require.True(t, ok)
	assert.Equal(t, "Mum's locket", *meta.CustomName)
	assert.Equal(t, "Birthday", *meta.Folder)
	assert.Equal(t, []string{"Birthday", "Wedding"}, f.Folders(ctx))

	assert.True(t, f.Rename(ctx, "locket", ""))
	meta, _ = f.MetaFor(ctx, "locket")
	assert.Nil(t, meta.CustomName)
	assert.True(t, f.Move(ctx, "locket", "Birthday"))
	assert.Equal(t, 3, calls, "unchanged folder stays silent")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, f := newFavorites(t, mem)

	f.Add(ctx, "a", AddOptions{Folder: "x"})
	f.Clear(ctx)
	assert.Empty(t, f.Items(ctx))
	assert.Empty(t, f.Metadata(ctx))
	assert.Empty(t, f.Folders(ctx))
}

func TestCrossTabRename(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, tabA := newFavorites(t, mem)
	_, tabB := newFavorites(t, mem)

	tabA.Add(ctx, "nose-pin", AddOptions{})

	var calls atomic.Int32
	unsub := tabB.Subscribe(func() { calls.Add(1) })
	defer unsub()
	base := calls.Load()

	tabA.Rename(ctx, "nose-pin", "Everyday")
	require.Eventually(t, func() bool { return calls.Load() > base }, time.Second, 5*time.Millisecond)

	meta, ok := tabB.MetaFor(ctx, "nose-pin")
	require.True(t, ok)
	assert.Equal(t, "Everyday", *meta.CustomName)
}

func TestWithoutStorage(t *testing.T) {
	ctx := context.Background()
	_, f := newFavorites(t, nil)

	assert.False(t, f.Add(ctx, "a", AddOptions{}))
	assert.False(t, f.Toggle(ctx, "a"))
	assert.False(t, f.Rename(ctx, "a", "x"))
	assert.Empty(t, f.Items(ctx))
	assert.Empty(t, f.Metadata(ctx))
}
