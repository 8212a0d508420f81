// ABOUTME: Tests for the TTL value cache.
// ABOUTME: Validates expiry, overwrite, size-bound eviction, sweeping, and concurrency safety.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache_GetMissing(t *testing.T) {
	c := New[string](time.Minute, 10)
	defer c.Close()

	v, ok := c.Get("never-set")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestCache_SetGet(t *testing.T) {
	c := New[[]int](time.Minute, 10)
	defer c.Close()

	c.Set("roster", []int{10, 50, 300})
	v, ok := c.Get("roster")
	assert.True(t, ok)
	assert.Equal(t, []int{10, 50, 300}, v)
}

func TestCache_Expiry(t *testing.T) {
	clock := newFakeClock()
	c := New[string](time.Minute, 10, WithClock(clock.Now))
	defer c.Close()

	c.Set("k", "v")
	clock.Advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "still fresh before TTL")

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok, "expired at TTL")
}

func TestCache_OverwriteRefreshes(t *testing.T) {
	clock := newFakeClock()
	c := New[string](time.Minute, 10, WithClock(clock.Now))
	defer c.Close()

	c.Set("k", "old")
	clock.Advance(50 * time.Second)
	c.Set("k", "new")
	clock.Advance(50 * time.Second)

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	c := New[int](time.Minute, 3)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("a", 10) // rewrite moves "a" to the back
	c.Set("d", 4)  // evicts "b"

	_, ok := c.Get("b")
	assert.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCache_Delete(t *testing.T) {
	c := New[int](time.Minute, 3)
	defer c.Close()

	c.Set("a", 1)
	c.Delete("a")
	c.Delete("missing")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_SweepRemovesExpired(t *testing.T) {
	clock := newFakeClock()
	c := New[int](time.Minute, 10, WithClock(clock.Now))
	defer c.Close()

	c.Set("old", 1)
	clock.Advance(2 * time.Minute)
	c.Set("fresh", 2)

	c.sweep()
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestCache_BackgroundSweep(t *testing.T) {
	c := New[int](5*time.Millisecond, 10, WithCleanupInterval(5*time.Millisecond))
	defer c.Close()

	c.Set("k", 1)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New[int](time.Minute, 1)
	c.Close()
	assert.NotPanics(t, c.Close)
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](time.Minute, 50)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k-%d", (i+j)%70)
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
