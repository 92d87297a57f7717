package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"filepanel/internal/logging"
	"filepanel/internal/model"
	"filepanel/internal/repository"
)

// Fetcher loads a fresh file list from the backend.
type Fetcher func(ctx context.Context) ([]model.FileRecord, error)

// Entry is one cached file list and the time it was fetched.
type Entry struct {
	Files     []model.FileRecord
	FetchedAt time.Time
}

// Result is what Load and Refresh return.
type Result struct {
	Entry
	// Hit is true when no backend request was made for this call.
	Hit bool
}

// QueryCache maps canonical filter keys to the last known file list.
//
// Lists are replaced wholesale; callers must treat Entry.Files as read-only.
// Concurrent misses on the same key share a single backend request.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	gen     uint64
	// invalidatedAt is when gen last moved. Stored snapshots fetched at or
	// before it are stale even if the store still returns them.
	invalidatedAt time.Time

	ttl     time.Duration
	now     func() time.Time
	store   repository.SnapshotRepository
	metrics *Metrics
	logger  *logging.Logger
	group   singleflight.Group
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithTTL sets how long an entry counts as fresh. Zero keeps entries until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *QueryCache) { c.ttl = ttl }
}

// WithStore backs the in-memory map with a persistent snapshot store.
func WithStore(store repository.SnapshotRepository) Option {
	return func(c *QueryCache) { c.store = store }
}

// WithMetrics records hits, misses and invalidations.
func WithMetrics(m *Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *logging.Logger) Option {
	return func(c *QueryCache) {
		if l != nil {
			c.logger = l.With("cache")
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *QueryCache) { c.now = now }
}

// New creates an empty cache.
func New(opts ...Option) *QueryCache {
	c := &QueryCache{
		entries: make(map[string]Entry),
		now:     time.Now,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the fresh entry for key, or fetches one.
// query is only recorded alongside persisted snapshots for operators.
func (c *QueryCache) Load(ctx context.Context, key, query string, fetch Fetcher) (Result, error) {
	if e, ok := c.Peek(key); ok {
		c.metrics.hit("memory")
		return Result{Entry: e, Hit: true}, nil
	}

	if e, ok := c.loadStored(ctx, key); ok {
		c.metrics.hit("store")
		return Result{Entry: e, Hit: true}, nil
	}

	c.metrics.miss()
	return c.fetch(ctx, key, query, fetch)
}

// Refresh fetches key regardless of freshness and replaces the stored entry.
func (c *QueryCache) Refresh(ctx context.Context, key, query string, fetch Fetcher) (Result, error) {
	c.metrics.miss()
	return c.fetch(ctx, key, query, fetch)
}

// Peek returns the in-memory entry for key when it is still fresh.
func (c *QueryCache) Peek(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.fresh(e) {
		return Entry{}, false
	}
	return e, true
}

// Len returns the number of in-memory entries, fresh or not.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// InvalidateAll drops every cached list so the next Load of any key fetches again.
// Fetches already in flight still answer their callers but are not stored.
func (c *QueryCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.gen++
	c.invalidatedAt = c.now()
	c.mu.Unlock()

	c.metrics.invalidated()

	if c.store == nil {
		return nil
	}
	n, err := c.store.DeleteAll(ctx)
	if err != nil {
		c.logger.Error("snapshot_invalidate_failed", err, nil)
		return fmt.Errorf("invalidate snapshot store: %w", err)
	}
	c.logger.Info("snapshots_invalidated", map[string]any{"rows": n})
	return nil
}

func (c *QueryCache) fresh(e Entry) bool {
	return c.ttl <= 0 || c.now().Sub(e.FetchedAt) < c.ttl
}

func (c *QueryCache) loadStored(ctx context.Context, key string) (Entry, bool) {
	if c.store == nil {
		return Entry{}, false
	}

	c.mu.RLock()
	gen, invalidatedAt := c.gen, c.invalidatedAt
	c.mu.RUnlock()

	snap, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrSnapshotNotFound) {
			c.logger.Error("snapshot_load_failed", err, map[string]any{"key": key})
		}
		return Entry{}, false
	}
	e := Entry{Files: snap.Files, FetchedAt: snap.FetchedAt}
	if !c.fresh(e) || (!invalidatedAt.IsZero() && !e.FetchedAt.After(invalidatedAt)) {
		return Entry{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return Entry{}, false
	}
	c.entries[key] = e
	return e, true
}

func (c *QueryCache) fetch(ctx context.Context, key, query string, fetch Fetcher) (Result, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	// The generation is part of the flight key so a fetch started before an
	// invalidation is never shared with callers arriving after it.
	flightKey := fmt.Sprintf("%d/%s", gen, key)
	v, err, _ := c.group.Do(flightKey, func() (any, error) {
		files, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if files == nil {
			files = make([]model.FileRecord, 0)
		}
		e := Entry{Files: files, FetchedAt: c.now()}

		c.mu.Lock()
		stored := c.gen == gen
		if stored {
			c.entries[key] = e
		}
		c.mu.Unlock()

		if stored && c.store != nil {
			c.persist(ctx, gen, &model.Snapshot{Key: key, Query: query, Files: files, FetchedAt: e.FetchedAt})
		}
		return e, nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Entry: v.(Entry)}, nil
}

// persist saves snap to the store. An InvalidateAll that ran while the write was
// in flight may have cleared the store before the row landed, so the row is
// removed again when the generation moved.
func (c *QueryCache) persist(ctx context.Context, gen uint64, snap *model.Snapshot) {
	if err := c.store.Save(ctx, snap); err != nil {
		c.logger.Error("snapshot_save_failed", err, map[string]any{"key": snap.Key})
		return
	}

	c.mu.RLock()
	moved := c.gen != gen
	c.mu.RUnlock()
	if !moved {
		return
	}
	if err := c.store.Delete(ctx, snap.Key); err != nil {
		c.logger.Error("snapshot_retract_failed", err, map[string]any{"key": snap.Key})
	}
}
