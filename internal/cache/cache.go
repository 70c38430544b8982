// Package cache is the client-side query cache. Queries are keyed by a
// string and tagged; mutations invalidate tags. Entries that are still
// subscribed get refetched on invalidation, the rest are dropped.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ticketkenya/internal/logger"
)

const DefaultKeepUnusedFor = 60 * time.Second

type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	tags      []string
	fetch     Fetcher
	data      any
	valid     bool
	gen       uint64 // bumped whenever data goes stale
	updatedAt time.Time
	subs      map[*Subscription]struct{}
	evict     *time.Timer
}

func (e *entry) tagged(tags []string) bool {
	for _, t := range tags {
		if slices.Contains(e.tags, t) {
			return true
		}
	}
	return false
}

type Cache struct {
	mu            sync.Mutex
	entries       map[string]*entry
	group         singleflight.Group
	keepUnusedFor time.Duration
	logger        *logger.Logger
}

type Option func(*Cache)

// WithKeepUnusedFor sets how long an entry without subscribers survives.
// Zero evicts on the last release.
func WithKeepUnusedFor(d time.Duration) Option {
	return func(c *Cache) { c.keepUnusedFor = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:       make(map[string]*entry),
		keepUnusedFor: DefaultKeepUnusedFor,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// entryLocked returns the entry for key, creating it. Caller holds c.mu.
func (c *Cache) entryLocked(key string, tags []string, fetch Fetcher) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{subs: make(map[*Subscription]struct{})}
		c.entries[key] = e
	}
	e.tags = tags
	e.fetch = fetch
	return e
}

// Query returns cached data for key or fetches it. Concurrent misses for
// the same key share one fetch.
func (c *Cache) Query(ctx context.Context, key string, tags []string, fetch Fetcher) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key, tags, fetch)
	if e.valid {
		data := e.data
		c.mu.Unlock()
		c.logger.LogCache("HIT", key, "served from cache")
		return data, nil
	}
	c.mu.Unlock()
	return c.load(ctx, key, tags, fetch)
}

func (c *Cache) load(ctx context.Context, key string, tags []string, fetch Fetcher) (any, error) {
	v, err, shared := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		started := c.entryLocked(key, tags, fetch)
		gen := started.gen
		c.mu.Unlock()

		c.logger.LogCache("FETCH", key, fmt.Sprintf("tags %v", tags))
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		e, ok := c.entries[key]
		if !ok || e != started || e.gen != gen {
			c.mu.Unlock()
			c.logger.LogCache("DISCARD", key, "invalidated while in flight")
			return data, nil
		}
		e.data = data
		e.valid = true
		e.updatedAt = time.Now()
		for s := range e.subs {
			s.notify()
		}
		if len(e.subs) == 0 {
			c.scheduleEvictLocked(key, e)
		}
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		c.logger.LogCache("ERROR", key, err.Error())
		c.mu.Lock()
		if e, ok := c.entries[key]; ok && !e.valid && len(e.subs) == 0 {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, err
	}
	if shared {
		c.logger.LogCache("SHARED", key, "joined in-flight fetch")
	}
	return v, nil
}

func (c *Cache) scheduleEvictLocked(key string, e *entry) {
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}
	if c.keepUnusedFor <= 0 {
		delete(c.entries, key)
		return
	}
	e.evict = time.AfterFunc(c.keepUnusedFor, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.entries[key]; ok && cur == e && len(e.subs) == 0 {
			delete(c.entries, key)
			c.logger.LogCache("EVICT", key, "unused")
		}
	})
}

// Invalidate marks every entry carrying one of tags as stale. Unsubscribed
// entries are dropped; subscribed ones are refetched independently and the
// subscribers notified. Refetch errors are joined.
func (c *Cache) Invalidate(ctx context.Context, tags ...string) error {
	type job struct {
		key   string
		tags  []string
		fetch Fetcher
	}

	c.mu.Lock()
	var jobs []job
	for key, e := range c.entries {
		if !e.tagged(tags) {
			continue
		}
		if len(e.subs) == 0 {
			if e.evict != nil {
				e.evict.Stop()
			}
			delete(c.entries, key)
			c.group.Forget(key)
			continue
		}
		e.valid = false
		e.gen++
		jobs = append(jobs, job{key: key, tags: e.tags, fetch: e.fetch})
	}
	c.mu.Unlock()

	c.logger.LogCache("INVALIDATE", fmt.Sprintf("%v", tags), fmt.Sprintf("%d refetch", len(jobs)))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, j := range jobs {
		c.group.Forget(j.key)
		g.Go(func() error {
			if _, err := c.load(ctx, j.key, j.tags, j.fetch); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("refetch %s: %w", j.key, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Subscribe keeps key alive until the subscription is released.
func (c *Cache) Subscribe(key string, tags []string, fetch Fetcher) *Subscription {
	s := &Subscription{
		cache:   c,
		key:     key,
		tags:    tags,
		fetch:   fetch,
		updates: make(chan struct{}, 1),
	}
	c.mu.Lock()
	e := c.entryLocked(key, tags, fetch)
	if e.evict != nil {
		e.evict.Stop()
		e.evict = nil
	}
	e.subs[s] = struct{}{}
	c.mu.Unlock()
	return s
}

func (c *Cache) release(s *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[s.key]
	if !ok {
		return
	}
	delete(e.subs, s)
	if len(e.subs) == 0 {
		c.scheduleEvictLocked(s.key, e)
	}
}

// Reset drops all cached data. Subscribed entries stay registered and
// refetch on their next Get.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		c.group.Forget(key)
		if len(e.subs) > 0 {
			e.data = nil
			e.valid = false
			e.gen++
			continue
		}
		if e.evict != nil {
			e.evict.Stop()
		}
		delete(c.entries, key)
	}
	c.logger.LogCache("RESET", "*", "all entries dropped")
}

// Contains reports whether key currently holds data.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.valid
}

func (c *Cache) Subscribers(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return len(e.subs)
	}
	return 0
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Subscription is a mounted query. Get reads through the cache; Updates
// fires after every successful refetch.
type Subscription struct {
	cache   *Cache
	key     string
	tags    []string
	fetch   Fetcher
	updates chan struct{}
	once    sync.Once
}

func (s *Subscription) Key() string { return s.key }

func (s *Subscription) Get(ctx context.Context) (any, error) {
	return s.cache.Query(ctx, s.key, s.tags, s.fetch)
}

// Refetch bypasses the cached value.
func (s *Subscription) Refetch(ctx context.Context) (any, error) {
	s.cache.mu.Lock()
	if e, ok := s.cache.entries[s.key]; ok {
		e.valid = false
		e.gen++
	}
	s.cache.mu.Unlock()
	s.cache.group.Forget(s.key)
	return s.cache.load(ctx, s.key, s.tags, s.fetch)
}

func (s *Subscription) Updates() <-chan struct{} { return s.updates }

func (s *Subscription) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Subscription) Release() {
	s.once.Do(func() { s.cache.release(s) })
}
