package feedback

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/gemcart/pkg/errors"
	"github.com/angelmondragon/gemcart/pkg/kv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// tickingClock advances one second per call so ordering is deterministic.
func tickingClock() func() time.Time {
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func newStore(t *testing.T, backend kv.Backend) (*kv.Adapter, *Store) {
	t.Helper()
	adapter := kv.NewAdapter(backend)
	s := New(context.Background(), adapter, WithClock(tickingClock()))
	t.Cleanup(s.Close)
	return adapter, s
}

func review(item string, rating int) Input {
	return Input{ItemID: item, CustomerName: "Meera", Rating: rating, Text: "Lovely finish"}
}

func TestAddGeneratesIDAndIndexesBoth(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, s := newStore(t, mem)

	created, err := s.Add(ctx, review("gold-hoops", 5))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^gold-hoops-\d+-[0-9a-f]{8}$`), created.ID)

	require.Len(t, s.ListByItem(ctx, "gold-hoops"), 1)
	require.Len(t, s.ListAll(ctx), 1)
	assert.Equal(t, created.ID, s.ListAll(ctx)[0].ID)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, s := newStore(t, mem)

	for name, in := range map[string]Input{
		"rating too high": review("x", 6),
		"rating zero":     review("x", 0),
		"no name":         {ItemID: "x", Rating: 3},
		"no item":         {CustomerName: "Meera", Rating: 3},
		"reserved item":   review("all", 3),
		"bad image":       {ItemID: "x", CustomerName: "Meera", Rating: 3, ImageData: "not an image!"},
	} {
		_, err := s.Add(ctx, in)
		require.Error(t, err, name)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
	assert.Empty(t, s.ListAll(ctx))
}

func TestUpdateTouchesBothIndexes(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, s := newStore(t, mem)

	created, err := s.Add(ctx, review("anklet", 3))
	require.NoError(t, err)

	rating := 4
	text := "Even better after a month"
	updated, ok, err := s.Update(ctx, created.ID, Patch{Rating: &rating, Text: &text})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, updated.Rating)
	require.NotNil(t, updated.UpdatedAt)

	assert.Equal(t, text, s.ListByItem(ctx, "anklet")[0].Text)
	assert.Equal(t, text, s.ListAll(ctx)[0].Text)

	bad := 9
	_, ok, err = s.Update(ctx, created.ID, Patch{Rating: &bad})
	assert.False(t, ok)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 4, s.ListAll(ctx)[0].Rating)

	_, ok, err = s.Update(ctx, "missing", Patch{Rating: &rating})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, s := newStore(t, mem)

	a, _ := s.Add(ctx, review("ring", 5))
	b, _ := s.Add(ctx, review("ring", 2))

	assert.True(t, s.Delete(ctx, a.ID))
	assert.False(t, s.Delete(ctx, a.ID))

	remaining := s.ListByItem(ctx, "ring")
	require.Len(t, remaining, 1)
	assert.Equal(t, b.ID, remaining[0].ID)
}

func TestMissingFromGlobalIsNotFound(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	adapter, s := newStore(t, mem)

	created, _ := s.Add(ctx, review("chain", 4))
	require.NoError(t, adapter.WriteRaw(ctx, KeyAll, "{corrupt"))

	assert.False(t, s.Delete(ctx, created.ID))
	rating := 1
	_, ok, err := s.Update(ctx, created.ID, Patch{Rating: &rating})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, s.ListByItem(ctx, "chain"), 1, "per-item index left untouched")
}

func TestInvalidRecordsAreFiltered(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	adapter, s := newStore(t, mem)

	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, adapter.Write(ctx, KeyAll, []Feedback{
		{ID: "ok", ItemID: "x", CustomerName: "A", Rating: 4, CreatedAt: now},
		{ID: "bad-rating", ItemID: "x", CustomerName: "A", Rating: 11, CreatedAt: now},
		{ID: "", ItemID: "x", CustomerName: "A", Rating: 4, CreatedAt: now},
	}))
	require.NoError(t, adapter.Write(ctx, ItemKey("x"), []Feedback{
		{ID: "ok", ItemID: "x", CustomerName: "A", Rating: 4, CreatedAt: now},
		{ID: "foreign", ItemID: "y", CustomerName: "A", Rating: 4, CreatedAt: now},
	}))

	all := s.ListAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "ok", all[0].ID)
	require.Len(t, s.ListByItem(ctx, "x"), 1)
}

func TestListsAreNewestFirst(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, s := newStore(t, mem)

	first, _ := s.Add(ctx, review("a", 3))
	second, _ := s.Add(ctx, review("b", 4))
	third, _ := s.Add(ctx, review("a", 5))

	var ids []string
	for _, item := range s.ListAll(ctx) {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, ids)
	assert.Equal(t, third.ID, s.ListByItem(ctx, "a")[0].ID)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, s := newStore(t, mem)

	empty := s.Summary(ctx, "pendant")
	assert.Zero(t, empty.Count)
	assert.True(t, empty.Average.IsZero())

	for _, rating := range []int{5, 4, 4} {
		_, err := s.Add(ctx, review("pendant", rating))
		require.NoError(t, err)
	}
	summary := s.Summary(ctx, "pendant")
	assert.Equal(t, 3, summary.Count)
	assert.True(t, decimal.RequireFromString("4.3").Equal(summary.Average), summary.Average.String())
}

func TestIndexesStayInAgreement(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, s := newStore(t, mem)

	items := []string{"ring", "bangle", "studs"}
	rng := rand.New(rand.NewSource(3))
	var ids []string
	for step := 0; step < 120; step++ {
		switch op := rng.Intn(3); {
		case op == 0 || len(ids) == 0:
			created, err := s.Add(ctx, review(items[rng.Intn(len(items))], 1+rng.Intn(5)))
			require.NoError(t, err)
			ids = append(ids, created.ID)
		case op == 1:
			rating := 1 + rng.Intn(5)
			_, _, err := s.Update(ctx, ids[rng.Intn(len(ids))], Patch{Rating: &rating})
			require.NoError(t, err)
		default:
			i := rng.Intn(len(ids))
			s.Delete(ctx, ids[i])
			ids = append(ids[:i], ids[i+1:]...)
		}

		global := map[string]struct{}{}
		for _, item := range s.ListAll(ctx) {
			global[item.ID] = struct{}{}
		}
		union := map[string]struct{}{}
		for _, item := range items {
			for _, record := range s.ListByItem(ctx, item) {
				union[record.ID] = struct{}{}
			}
		}
		require.Equal(t, global, union, fmt.Sprintf("step %d", step))
	}
}

func TestCrossTabNotification(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	defer mem.Close()
	_, tabA := newStore(t, mem)
	_, tabB := newStore(t, mem)

	var calls atomic.Int32
	unsub := tabB.Subscribe(func() { calls.Add(1) })
	assert.True(t, tabB.Listening())

	_, err := tabA.Add(ctx, review("earrings", 5))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, tabB.ListAll(ctx), 1)

	unsub()
	assert.False(t, tabB.Listening())
}

func TestWithoutStorage(t *testing.T) {
	ctx := context.Background()
	_, s := newStore(t, nil)

	created, err := s.Add(ctx, review("x", 4))
	require.NoError(t, err)
	assert.Empty(t, s.ListAll(ctx))
	assert.False(t, s.Delete(ctx, created.ID))
}
