package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/operator-console/internal/metrics"
)

func TestNewKey(t *testing.T) {
	k := NewKey("operator.recommendations", map[string]string{
		"status":  "pending",
		"limit":   "100",
		"user_id": "",
	})
	assert.Equal(t, Key("operator.recommendations?limit=100&status=pending"), k)
	assert.Equal(t, "operator.recommendations", k.Family())
	assert.Equal(t, "pending", k.Param("status"))
	assert.Equal(t, "", k.Param("user_id"))

	assert.Equal(t, Key("stats"), NewKey("stats", nil))
	assert.Equal(t, "stats", Key("stats").Family())
}

func TestFetch_CachesAndDedupes(t *testing.T) {
	c := New(time.Minute, WithMetrics(metrics.New()))
	key := NewKey("stats", nil)

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, key, fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}

	v, err := Fetch(context.Background(), c, key, fn)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(1), calls.Load(), "served from cache")
}

func TestFetch_ErrorIsNotCached(t *testing.T) {
	c := New(time.Minute)
	key := NewKey("stats", nil)
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), c, key, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := Fetch(context.Background(), c, key, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestInvalidate_Refetches(t *testing.T) {
	c := New(time.Minute)
	key := NewKey("operator.signals", map[string]string{"user_id": "u1", "window_days": "30"})

	n := 0
	fn := func(context.Context) (int, error) { n++; return n, nil }

	v, _ := Fetch(context.Background(), c, key, fn)
	assert.Equal(t, 1, v)

	c.Invalidate(key)
	v, _ = Fetch(context.Background(), c, key, fn)
	assert.Equal(t, 2, v)
}

func TestInvalidateFamily(t *testing.T) {
	c := New(time.Minute)
	pending := NewKey("operator.recommendations", map[string]string{"status": "pending"})
	flagged := NewKey("operator.recommendations", map[string]string{"status": "flagged"})
	stats := NewKey("stats", nil)

	for _, k := range []Key{pending, flagged, stats} {
		_, err := Fetch(context.Background(), c, k, func(context.Context) (string, error) { return string(k), nil })
		require.NoError(t, err)
	}
	assert.Len(t, c.Keys("operator.recommendations"), 2)

	changes, cancel := c.Subscribe("operator.recommendations")
	defer cancel()

	c.InvalidateFamily("operator.recommendations")

	assert.Empty(t, c.Keys("operator.recommendations"))
	_, ok := Peek[string](c, stats)
	assert.True(t, ok, "other families untouched")

	select {
	case k := <-changes:
		assert.Equal(t, "operator.recommendations", k.Family())
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}

func TestInvalidateDuringFetchDropsResult(t *testing.T) {
	c := New(time.Minute)
	key := NewKey("operator.recommendations", map[string]string{"status": "pending"})

	v, err := Fetch(context.Background(), c, key, func(context.Context) (string, error) {
		c.InvalidateFamily("operator.recommendations")
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v, "caller still gets its result")

	_, ok := Peek[string](c, key)
	assert.False(t, ok)
}

func TestFetchAfterInvalidateDoesNotJoinStaleFlight(t *testing.T) {
	c := New(time.Minute)
	key := NewKey("operator.recommendations", map[string]string{"status": "pending"})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string, 1)
	go func() {
		v, _ := Fetch(context.Background(), c, key, func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
		done <- v
	}()
	<-started

	c.InvalidateFamily("operator.recommendations")
	v, err := Fetch(context.Background(), c, key, func(context.Context) (string, error) {
		return "new", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	close(release)
	assert.Equal(t, "old", <-done)

	cached, ok := Peek[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "new", cached)
}

func TestPatch(t *testing.T) {
	c := New(time.Minute)
	key := NewKey("operator.recommendations", map[string]string{"status": "pending"})

	assert.False(t, Patch(c, key, func(s []string) ([]string, bool) { return nil, true }), "missing key")

	_, err := Fetch(context.Background(), c, key, func(context.Context) ([]string, error) {
		return []string{"A", "B", "C"}, nil
	})
	require.NoError(t, err)

	changes, cancel := c.Subscribe("")
	defer cancel()

	changed := Patch(c, key, func(s []string) ([]string, bool) {
		return []string{s[0], s[2]}, true
	})
	assert.True(t, changed)

	got, ok := Peek[[]string](c, key)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "C"}, got)

	select {
	case k := <-changes:
		assert.Equal(t, key, k)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	assert.False(t, Patch(c, key, func(s []string) ([]string, bool) { return s, false }))
}

func TestSubscribeCancel(t *testing.T) {
	c := New(time.Minute)
	ch, cancel := c.Subscribe("stats")
	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.NotPanics(t, func() { c.Invalidate(NewKey("stats", nil)) })
}
