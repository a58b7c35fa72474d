// Package pagecache keeps a bounded set of asynchronous page renders keyed by
// logical page number, with windowed prefetch, age-based eviction and
// cancellation of renders the reader has moved past.
package pagecache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/jobs"
	"github.com/jackzampolin/lectern/internal/render"
)

const (
	// DefaultCapacity suits interactive paging.
	DefaultCapacity = 50
	// ExportCapacity suits pre-warming a large run of pages.
	ExportCapacity = 500
	// DefaultStaleThreshold is how many newer requests an unfinished render
	// may fall behind before PurgeStale cancels it.
	DefaultStaleThreshold = 5
)

// Config holds the cache tuning values.
type Config struct {
	Capacity       int
	StaleThreshold int
	// Workers is the number of concurrent renders (default: runtime.NumCPU()).
	// It is fixed once the cache is created.
	Workers int
	// Size is the destination bitmap size handed to the renderer.
	Size render.Size
}

// DefaultConfig returns the interactive defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       DefaultCapacity,
		StaleThreshold: DefaultStaleThreshold,
		Workers:        runtime.NumCPU(),
	}
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = DefaultStaleThreshold
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// Stats is a snapshot of cache state and counters.
type Stats struct {
	Entries        int             `json:"entries" yaml:"entries"`
	Completed      int             `json:"completed" yaml:"completed"`
	Capacity       int             `json:"capacity" yaml:"capacity"`
	StaleThreshold int             `json:"stale_threshold" yaml:"stale_threshold"`
	NewestAge      uint64          `json:"newest_age" yaml:"newest_age"`
	Size           render.Size     `json:"size" yaml:"size"`
	Hits           int64           `json:"hits" yaml:"hits"`
	Misses         int64           `json:"misses" yaml:"misses"`
	Evictions      int64           `json:"evictions" yaml:"evictions"`
	Purges         int64           `json:"purges" yaml:"purges"`
	Pages          []int           `json:"pages" yaml:"pages"`
	Pool           jobs.PoolStatus `json:"pool" yaml:"pool"`
}

// Cache maps logical pages to render entries. Safe for concurrent use: all
// bookkeeping happens under one mutex, and render jobs only ever resolve
// their own entry.
type Cache struct {
	book     *book.Book
	renderer render.Renderer
	pool     *jobs.Pool
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	entries   map[int]*Entry
	age       uint64
	cfg       Config
	closed    bool
	hits      int64
	misses    int64
	evictions int64
	purges    int64
}

// New creates a cache over b and starts its render workers.
func New(b *book.Book, renderer render.Renderer, cfg Config, logger *slog.Logger) (*Cache, error) {
	if b == nil {
		return nil, fmt.Errorf("page cache requires a book")
	}
	if renderer == nil {
		return nil, fmt.Errorf("page cache requires a renderer")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		book:     b,
		renderer: renderer,
		logger:   logger.With("cache", "pages"),
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[int]*Entry),
		cfg:      cfg,
	}
	c.pool = jobs.NewPool(jobs.PoolConfig{
		Name:        "render",
		Logger:      logger,
		WorkerCount: cfg.Workers,
	})
	if err := c.pool.Start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start render pool: %w", err)
	}
	return c, nil
}

// GetOrCreate returns the live entry for page, creating and scheduling one if
// needed. It never blocks on rendering. Pages outside the book (and every
// page once the cache is closed) have nothing to cache and return nil.
func (c *Cache) GetOrCreate(page int) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrCreateLocked(page)
}

func (c *Cache) getOrCreateLocked(page int) *Entry {
	if c.closed {
		return nil
	}
	if e, ok := c.entries[page]; ok {
		c.hits++
		return e
	}
	if !c.book.Contains(page) {
		return nil
	}

	c.misses++
	c.age++
	e := newEntry(c.ctx, page, c.age)
	c.entries[page] = e

	size := c.cfg.Size
	err := c.pool.Submit(&jobs.WorkUnit{
		ID:       fmt.Sprintf("page-%d", page),
		Priority: e.age,
		Run: func(poolCtx context.Context) {
			c.render(poolCtx, e, size)
		},
	})
	if err != nil {
		c.logger.Warn("failed to schedule render", "page", page, "error", err)
		e.resolve(nil, err)
		e.cancel()
	}

	c.evictLocked()
	return e
}

// evictLocked removes the oldest entries until the cache fits its capacity,
// whether or not they have finished.
func (c *Cache) evictLocked() {
	for len(c.entries) > c.cfg.Capacity {
		var oldest *Entry
		for _, e := range c.entries {
			if oldest == nil || e.age < oldest.age {
				oldest = e
			}
		}
		oldest.abort()
		delete(c.entries, oldest.page)
		c.evictions++
		c.logger.Debug("evicted page", "page", oldest.page, "age", oldest.age)
	}
}

// render is the body of one render job. It checks for cancellation before
// the render call and again before committing the result.
func (c *Cache) render(poolCtx context.Context, e *Entry, size render.Size) {
	defer e.cancel()
	start := time.Now()

	canceled := func() bool {
		return poolCtx.Err() != nil || e.ctx.Err() != nil
	}
	if canceled() {
		c.finish(e, nil, render.ErrCanceled, start)
		return
	}

	loc, err := c.book.Resolve(e.page)
	if err != nil {
		c.finish(e, nil, err, start)
		return
	}
	rotation, err := c.book.RotationOf(e.page)
	if err != nil {
		c.finish(e, nil, err, start)
		return
	}

	doc, err := c.book.Document(e.ctx, loc.Volume)
	if err != nil {
		if canceled() {
			err = render.ErrCanceled
		}
		c.finish(e, nil, err, start)
		return
	}

	if canceled() {
		c.finish(e, nil, render.ErrCanceled, start)
		return
	}
	img, err := c.renderer.Render(e.ctx, doc, loc.Index, rotation, size)

	// A cancelled job may finish its render but must discard the result.
	if canceled() {
		c.finish(e, nil, render.ErrCanceled, start)
		return
	}
	c.finish(e, img, err, start)
}

func (c *Cache) finish(e *Entry, img image.Image, err error, start time.Time) {
	if !e.resolve(img, err) {
		return
	}
	switch {
	case err == nil:
		c.logger.Debug("page rendered", "page", e.page, "age", e.age, "duration", time.Since(start))
	case errors.Is(err, render.ErrCanceled):
		c.logger.Debug("page render canceled", "page", e.page, "age", e.age)
	default:
		c.logger.Warn("page render failed", "page", e.page, "age", e.age, "error", err)
	}
}

// PrefetchWindow ensures entries for one view behind center, the view at
// center and the pages ahead of it: pages [center-perView, center+ahead]
// where ahead is max(2*perView-1, perView+1), so a single page view still
// reads two pages ahead (5 with one page per view covers 4..7, with two
// covers 3..8). The current view is requested last so it carries the
// newest ages. It returns the current view's entries in page order,
// skipping pages outside the book.
func (c *Cache) PrefetchWindow(center, perView int) []*Entry {
	if perView < 1 {
		perView = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for p := center - perView; p < center; p++ {
		c.getOrCreateLocked(p)
	}
	last := center + max(2*perView-1, perView+1)
	for p := center + perView; p <= last; p++ {
		c.getOrCreateLocked(p)
	}

	visible := make([]*Entry, 0, perView)
	for p := center; p < center+perView; p++ {
		if e := c.getOrCreateLocked(p); e != nil {
			visible = append(visible, e)
		}
	}
	return visible
}

// PurgeStale cancels and removes unfinished entries that have fallen more
// than the stale threshold behind the newest request. The entry for current
// and completed entries are always kept. Returns the number removed.
func (c *Cache) PurgeStale(current int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for page, e := range c.entries {
		if page == current || e.Completed() {
			continue
		}
		if c.age-e.age > uint64(c.cfg.StaleThreshold) {
			e.abort()
			delete(c.entries, page)
			removed++
		}
	}
	if removed > 0 {
		c.purges += int64(removed)
		c.logger.Debug("purged stale renders", "current", current, "removed", removed)
	}
	return removed
}

// Clear cancels and removes every entry and restarts the age counter.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cache) clearLocked() {
	for page, e := range c.entries {
		e.abort()
		delete(c.entries, page)
	}
	c.age = 0
}

// Invalidate cancels and removes the entries for pages. Returns how many
// were present.
func (c *Cache) Invalidate(pages ...int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, p := range pages {
		if e, ok := c.entries[p]; ok {
			e.abort()
			delete(c.entries, p)
			n++
		}
	}
	return n
}

// InvalidateRange removes every entry for pages in [first, last].
func (c *Cache) InvalidateRange(first, last int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for page, e := range c.entries {
		if page >= first && page <= last {
			e.abort()
			delete(c.entries, page)
			n++
		}
	}
	return n
}

// Size returns the destination bitmap size.
func (c *Cache) Size() render.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Size
}

// SetViewSize changes the destination size. Cached bitmaps no longer fit, so
// a change clears the cache.
func (c *Cache) SetViewSize(size render.Size) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if size == c.cfg.Size {
		return
	}
	c.cfg.Size = size
	c.clearLocked()
	c.logger.Debug("view size changed", "size", size.String())
}

// Reconfigure applies new capacity and stale threshold values. A smaller
// capacity evicts immediately. Workers and Size are not changed here.
func (c *Cache) Reconfigure(cfg Config) {
	cfg = cfg.withDefaults()

	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.Workers != c.cfg.Workers {
		c.logger.Info("render worker count applies on next open", "current", c.cfg.Workers, "requested", cfg.Workers)
	}
	c.cfg.Capacity = cfg.Capacity
	c.cfg.StaleThreshold = cfg.StaleThreshold
	c.evictLocked()
	c.logger.Debug("cache reconfigured", "capacity", cfg.Capacity, "stale_threshold", cfg.StaleThreshold)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Pages returns the cached page numbers in ascending order.
func (c *Cache) Pages() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pagesLocked()
}

func (c *Cache) pagesLocked() []int {
	pages := make([]int, 0, len(c.entries))
	for p := range c.entries {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// Peek returns the cached entry for page without creating one.
func (c *Cache) Peek(page int) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[page]
	return e, ok
}

// Stats returns a snapshot of the cache.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	completed := 0
	for _, e := range c.entries {
		if e.Completed() {
			completed++
		}
	}
	return Stats{
		Entries:        len(c.entries),
		Completed:      completed,
		Capacity:       c.cfg.Capacity,
		StaleThreshold: c.cfg.StaleThreshold,
		NewestAge:      c.age,
		Size:           c.cfg.Size,
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		Purges:         c.purges,
		Pages:          c.pagesLocked(),
		Pool:           c.pool.Status(),
	}
}

// Close cancels everything and stops the render workers. Later calls to
// GetOrCreate return nil.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.clearLocked()
	c.mu.Unlock()

	c.cancel()
	c.pool.Stop()
	return nil
}
