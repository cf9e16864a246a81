package kv

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/gemcart/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Slug string `json:"slug"`
}

func requireSlug(r record) error {
	if r.Slug == "" {
		return errors.New("slug missing")
	}
	return nil
}

func TestAdapterRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemory())

	require.NoError(t, a.Write(ctx, "items", []string{"a", "b"}))
	got, ok := Read[[]string](ctx, a, "items", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	require.NoError(t, a.Remove(ctx, "items"))
	_, ok = Read[[]string](ctx, a, "items", nil)
	assert.False(t, ok)
}

func TestAdapterCorruptValueIsAbsent(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	a := NewAdapter(NewMemory(), WithMetrics(metrics.NewStoreMetrics(reg)))

	require.NoError(t, a.WriteRaw(ctx, "items", "{not json"))
	got, ok := Read[[]string](ctx, a, "items", nil)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, a.WriteRaw(ctx, "items", `{"slug":"x"}`))
	_, ok = Read[[]string](ctx, a, "items", nil)
	assert.False(t, ok, "foreign shape must read as absent")

	require.NoError(t, a.Write(ctx, "items", []string{"ok"}))
	got, ok = Read[[]string](ctx, a, "items", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"ok"}, got)
}

func TestAdapterValidationFailureIsAbsent(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemory())

	require.NoError(t, a.WriteRaw(ctx, "rec", `{"other":1}`))
	_, ok := Read(ctx, a, "rec", requireSlug)
	assert.False(t, ok)

	require.NoError(t, a.Write(ctx, "rec", record{Slug: "ring"}))
	got, ok := Read(ctx, a, "rec", requireSlug)
	require.True(t, ok)
	assert.Equal(t, "ring", got.Slug)
}

func TestAdapterWithoutStorage(t *testing.T) {
	ctx := context.Background()
	for name, a := range map[string]*Adapter{
		"nil backend": NewAdapter(nil),
		"nil adapter": nil,
	} {
		t.Run(name, func(t *testing.T) {
			assert.False(t, a.Available())
			assert.NoError(t, a.Write(ctx, "k", []string{"a"}))
			_, ok := Read[[]string](ctx, a, "k", nil)
			assert.False(t, ok)
			assert.NoError(t, a.Remove(ctx, "k"))
			stop, err := a.Watch(ctx, func(Event) {})
			require.NoError(t, err)
			stop()
		})
	}
}

type failingBackend struct {
	Unavailable
}

func (failingBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func (failingBackend) Set(context.Context, string, string, string) error {
	return errors.New("disk on fire")
}

func TestAdapterBackendFailures(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(failingBackend{})
	_, ok := a.ReadRaw(ctx, "k")
	assert.False(t, ok)
	assert.Error(t, a.Write(ctx, "k", 1))
}

func TestAdapterScopeIsolatesProfiles(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	root := NewAdapter(mem)
	alice := root.Scope("alice")
	bob := root.Scope("bob")

	require.NoError(t, alice.Write(ctx, "cart", []string{"ring"}))
	_, ok := Read[[]string](ctx, bob, "cart", nil)
	assert.False(t, ok)

	got, ok := Read[[]string](ctx, alice, "cart", nil)
	require.True(t, ok)
	assert.Equal(t, []string{"ring"}, got)
	assert.Equal(t, root.Origin(), alice.Origin())
}

func TestAdapterWatchSkipsOwnOriginAndOtherProfiles(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	defer mem.Close()

	tabA := NewAdapter(mem).Scope("p1")
	tabB := NewAdapter(mem).Scope("p1")
	otherProfile := NewAdapter(mem).Scope("p2")

	var mu sync.Mutex
	var seen []Event
	stop, err := tabA.Watch(ctx, func(ev Event) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, tabA.Write(ctx, "cart", []string{"own"}))
	require.NoError(t, otherProfile.Write(ctx, "cart", []string{"other"}))
	require.NoError(t, tabB.Write(ctx, "cart", []string{"peer"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "cart", seen[0].Key)
	assert.Equal(t, tabB.Origin(), seen[0].Origin)
}
