package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryDeliversEventsInOrder(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	defer mem.Close()

	var mu sync.Mutex
	var keys []string
	stop, err := mem.Watch(ctx, func(ev Event) {
		mu.Lock()
		keys = append(keys, ev.Key)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, mem.Set(ctx, key, "1", "origin"))
	}
	require.NoError(t, mem.Delete(ctx, "b", "origin"))
	require.NoError(t, mem.Delete(ctx, "missing", "origin"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "b"}, keys)
	assert.Equal(t, 2, mem.Len())
}

func TestMemoryStopFromInsideListener(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	defer mem.Close()

	done := make(chan struct{})
	var stop func()
	var err error
	stop, err = mem.Watch(ctx, func(Event) {
		stop()
		close(done)
	})
	require.NoError(t, err)

	require.NoError(t, mem.Set(ctx, "k", "v", ""))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener never ran")
	}
}

func TestMemoryClosed(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Close())
	require.NoError(t, mem.Close())

	assert.ErrorIs(t, mem.Set(ctx, "k", "v", ""), ErrClosed)
	_, _, err := mem.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = mem.Watch(ctx, func(Event) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, mem.Ping(ctx), ErrClosed)
}
