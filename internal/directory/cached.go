// ABOUTME: Caching decorator for any Directory
// ABOUTME: Holds roster, count and schedule reads for a TTL; concurrent misses share one read

package directory

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/2389/missionlink-gateway/internal/cache"
)

const cacheSize = 256

// Cached wraps a Directory. Meals and events pass through because they
// depend on the current date.
type Cached struct {
	next      Directory
	rosters   *cache.Cache[[]Student]
	counts    *cache.Cache[int]
	schedules *cache.Cache[[]ScheduleEntry]
	group     singleflight.Group
}

var _ Directory = (*Cached)(nil)

// NewCached wraps next with a cache holding entries for ttl.
func NewCached(next Directory, ttl time.Duration) *Cached {
	return &Cached{
		next:      next,
		rosters:   cache.New[[]Student](ttl, 1),
		counts:    cache.New[int](ttl, cacheSize),
		schedules: cache.New[[]ScheduleEntry](ttl, cacheSize),
	}
}

// Close stops the cache sweepers. It does not close the wrapped directory.
func (c *Cached) Close() {
	c.rosters.Close()
	c.counts.Close()
	c.schedules.Close()
}

// MealFor implements Directory.
func (c *Cached) MealFor(ctx context.Context, date string) (*Meal, error) {
	return c.next.MealFor(ctx, date)
}

// UpcomingEvents implements Directory.
func (c *Cached) UpcomingEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	return c.next.UpcomingEvents(ctx, q)
}

// Students implements Directory.
func (c *Cached) Students(ctx context.Context) ([]Student, error) {
	return load(c, c.rosters, "roster", func() ([]Student, error) {
		return c.next.Students(ctx)
	})
}

// CountStudents implements Directory.
func (c *Cached) CountStudents(ctx context.Context, f StudentFilter) (int, error) {
	key := "count:" + f.Grade + "\x00" + f.Country
	return load(c, c.counts, key, func() (int, error) {
		return c.next.CountStudents(ctx, f)
	})
}

// ScheduleFor implements Directory.
func (c *Cached) ScheduleFor(ctx context.Context, grade string) ([]ScheduleEntry, error) {
	return load(c, c.schedules, "schedule:"+grade, func() ([]ScheduleEntry, error) {
		return c.next.ScheduleFor(ctx, grade)
	})
}

// load returns a cached value or runs fetch once for all concurrent callers.
// Errors are not cached.
func load[V any](c *Cached, store *cache.Cache[V], key string, fetch func() (V, error)) (V, error) {
	if v, ok := store.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := store.Get(key); ok {
			return v, nil
		}
		v, err := fetch()
		if err != nil {
			return v, err
		}
		store.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}
