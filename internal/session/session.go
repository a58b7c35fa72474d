// Package session ties one open book to its page cache, TOC and favorites,
// and drives prefetching as the reader moves through the book.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/markers"
	"github.com/jackzampolin/lectern/internal/pagecache"
	"github.com/jackzampolin/lectern/internal/render"
)

var (
	// ErrSuperseded is returned by Show when the reader moved to another
	// page before the requested one finished rendering.
	ErrSuperseded = errors.New("view superseded by a newer request")

	// ErrEmptyBook is returned when the book has no pages to show.
	ErrEmptyBook = errors.New("book has no pages")

	// ErrNoManifest is returned by Save for a session not opened from a file.
	ErrNoManifest = errors.New("session has no manifest path")

	// ErrClosed is returned by Show after Close.
	ErrClosed = errors.New("session closed")
)

// showAttempts bounds how often Show re-requests a visible page whose entry
// was cancelled underneath it by eviction or purging.
const showAttempts = 3

// Options configures Open.
type Options struct {
	// ManifestPath is loaded when Manifest is nil, and is where Save writes.
	ManifestPath string
	Manifest     *book.Manifest

	// Opener and Renderer default to the pdfcpu backend.
	Opener   render.Opener
	Renderer render.Renderer
	// CountPages fills in missing volume page counts (default: render.PageCount).
	CountPages book.PageCounter

	Cache        pagecache.Config
	PagesPerView int

	OpenAttempts   int
	OpenRetryDelay time.Duration

	Logger *slog.Logger
}

// PageImage is one rendered page of a view.
type PageImage struct {
	Page        int
	Image       image.Image
	Description string
	// Err is set when the page failed to open or render.
	Err error
}

// View is what Show produced: the first page of the view and its pages.
type View struct {
	Page  int
	Pages []PageImage
}

// PageInfo describes where a logical page lives and its markers.
type PageInfo struct {
	Page        int             `json:"page" yaml:"page"`
	Volume      int             `json:"volume" yaml:"volume"`
	VolumePath  string          `json:"volume_path" yaml:"volume_path"`
	Index       int             `json:"index" yaml:"index"`
	Rotation    render.Rotation `json:"rotation" yaml:"rotation"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Favorite    bool            `json:"favorite" yaml:"favorite"`
	Cached      bool            `json:"cached" yaml:"cached"`
}

// Status is a snapshot of the session.
type Status struct {
	ID           string          `json:"id" yaml:"id"`
	Title        string          `json:"title" yaml:"title"`
	Current      int             `json:"current" yaml:"current"`
	PagesPerView int             `json:"pages_per_view" yaml:"pages_per_view"`
	FirstPage    int             `json:"first_page" yaml:"first_page"`
	LastPage     int             `json:"last_page" yaml:"last_page"`
	Dirty        bool            `json:"dirty" yaml:"dirty"`
	Cache        pagecache.Stats `json:"cache" yaml:"cache"`
}

// Session owns one open book. Safe for concurrent use.
type Session struct {
	id           string
	logger       *slog.Logger
	manifestPath string
	manifest     *book.Manifest

	book      *book.Book
	cache     *pagecache.Cache
	toc       *markers.TOC
	favorites *markers.Favorites

	mu         sync.Mutex
	current    int
	perView    int
	generation uint64
	closed     bool

	dirty atomic.Bool
}

// Open loads the manifest and builds the book and its cache.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := opts.Manifest
	if m == nil {
		if opts.ManifestPath == "" {
			return nil, fmt.Errorf("session requires a manifest or manifest path")
		}
		var err error
		m, err = book.LoadManifest(opts.ManifestPath)
		if err != nil {
			return nil, err
		}
	}

	count := opts.CountPages
	if count == nil {
		count = render.PageCount
	}
	volumes, err := m.BookVolumes(count)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session", id[:8])

	opener := opts.Opener
	if opener == nil {
		opener = render.PDFOpener{}
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.ImageRenderer{}
	}
	perView := opts.PagesPerView
	if perView < 1 {
		perView = 1
	}

	s := &Session{
		id:           id,
		logger:       logger,
		manifestPath: opts.ManifestPath,
		manifest:     m,
		toc:          markers.NewTOC(m.TOCEntries()...),
		favorites:    markers.NewFavorites(m.Favorites...),
		perView:      perView,
	}

	s.book, err = book.New(book.Config{
		Volumes:        volumes,
		Offset:         m.PageNumberOffset,
		Opener:         opener,
		Logger:         logger,
		OnDirty:        s.markDirty,
		OpenAttempts:   opts.OpenAttempts,
		OpenRetryDelay: opts.OpenRetryDelay,
	})
	if err != nil {
		return nil, err
	}

	s.cache, err = pagecache.New(s.book, renderer, opts.Cache, logger)
	if err != nil {
		_ = s.book.Close()
		return nil, err
	}

	s.current = s.book.FirstPage()
	logger.Info("book opened",
		"title", m.Title,
		"volumes", len(volumes),
		"first_page", s.book.FirstPage(),
		"last_page", s.book.LastPage())
	return s, nil
}

func (s *Session) markDirty() {
	s.dirty.Store(true)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Title returns the book title.
func (s *Session) Title() string { return s.manifest.Title }

// Book returns the underlying address space.
func (s *Session) Book() *book.Book { return s.book }

// Cache returns the page cache.
func (s *Session) Cache() *pagecache.Cache { return s.cache }

// Current returns the first page of the current view.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// PagesPerView returns how many pages one view shows.
func (s *Session) PagesPerView() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perView
}

// align clamps page into the book and moves it to the first page of its view.
func (s *Session) align(page, perView int) int {
	page = s.book.Clamp(page)
	first := s.book.FirstPage()
	return first + ((page-first)/perView)*perView
}

// Show makes page current, prefetches around it, cancels renders the reader
// has left behind and waits for the visible pages. If another Show moves the
// view while this one waits, it returns ErrSuperseded.
func (s *Session) Show(ctx context.Context, page int) (View, error) {
	if s.book.Empty() {
		return View{}, ErrEmptyBook
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return View{}, ErrClosed
	}
	perView := s.perView
	start := s.align(page, perView)
	s.current = start
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.cache.PrefetchWindow(start, perView)
	s.cache.PurgeStale(start)

	view := View{Page: start}
	for p := start; p < start+perView && s.book.Contains(p); p++ {
		img, err := s.waitPage(ctx, p, gen)
		if ctx.Err() != nil {
			return View{}, ctx.Err()
		}
		desc, _ := s.toc.DescriptionFor(p)
		view.Pages = append(view.Pages, PageImage{Page: p, Image: img, Description: desc, Err: err})
	}

	if !s.isCurrent(gen) {
		return View{}, ErrSuperseded
	}
	return view, nil
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (s *Session) waitPage(ctx context.Context, page int, gen uint64) (image.Image, error) {
	var err error
	for attempt := 0; attempt < showAttempts; attempt++ {
		e := s.cache.GetOrCreate(page)
		if e == nil {
			return nil, fmt.Errorf("%w: page %d", book.ErrAddressOutOfRange, page)
		}
		var img image.Image
		img, err = e.Wait(ctx)
		if !errors.Is(err, render.ErrCanceled) || ctx.Err() != nil || !s.isCurrent(gen) {
			return img, err
		}
		s.logger.Debug("visible page was cancelled, requesting again", "page", page, "attempt", attempt+1)
	}
	return nil, err
}

// NextView shows the view after the current one.
func (s *Session) NextView(ctx context.Context) (View, error) {
	s.mu.Lock()
	next := s.current + s.perView
	s.mu.Unlock()
	return s.Show(ctx, next)
}

// PrevView shows the view before the current one.
func (s *Session) PrevView(ctx context.Context) (View, error) {
	s.mu.Lock()
	prev := s.current - s.perView
	s.mu.Unlock()
	return s.Show(ctx, prev)
}

// Describe returns the title of the nearest TOC entry at or before page.
func (s *Session) Describe(page int) (string, bool) {
	return s.toc.DescriptionFor(page)
}

// TOC returns the table of contents entries.
func (s *Session) TOC() []markers.TOCEntry {
	return s.toc.Entries()
}

// Page describes a logical page.
func (s *Session) Page(page int) (PageInfo, error) {
	loc, err := s.book.Resolve(page)
	if err != nil {
		return PageInfo{}, err
	}
	rotation, err := s.book.RotationOf(page)
	if err != nil {
		return PageInfo{}, err
	}
	desc, _ := s.toc.DescriptionFor(page)
	_, cached := s.cache.Peek(page)

	return PageInfo{
		Page:        page,
		Volume:      loc.Volume,
		VolumePath:  s.book.Volumes()[loc.Volume].Path,
		Index:       loc.Index,
		Rotation:    rotation,
		Description: desc,
		Favorite:    s.favorites.Contains(page),
		Cached:      cached,
	}, nil
}

// Favorites returns the favorite pages in order.
func (s *Session) Favorites() []int {
	return s.favorites.Pages()
}

// NextFavorite returns the nearest favorite from the current page in dir,
// skipping the current page itself.
func (s *Session) NextFavorite(dir markers.Direction) (int, bool) {
	return s.NextFavoriteFrom(s.Current(), dir)
}

// NextFavoriteFrom is NextFavorite relative to an arbitrary page.
func (s *Session) NextFavoriteFrom(page int, dir markers.Direction) (int, bool) {
	return s.favorites.Next(page, dir)
}

// ToggleFavorite flips the favorite mark on page and reports whether it is
// now a favorite.
func (s *Session) ToggleFavorite(page int) (bool, error) {
	if !s.book.Contains(page) {
		_, err := s.book.Resolve(page)
		return false, err
	}
	on := s.favorites.Toggle(page)
	s.markDirty()
	return on, nil
}

// Rotate turns the volume owning page by 90 degrees and drops that
// volume's cached pages.
func (s *Session) Rotate(page int) (render.Rotation, error) {
	loc, err := s.book.Resolve(page)
	if err != nil {
		return render.Rotate0, err
	}
	rotation, err := s.book.Rotate(page)
	if err != nil {
		return render.Rotate0, err
	}
	first, last, err := s.book.VolumeRange(loc.Volume)
	if err != nil {
		return rotation, err
	}
	n := s.cache.InvalidateRange(first, last)
	s.logger.Info("volume rotated", "volume", loc.Volume, "rotation", int(rotation), "invalidated", n)
	return rotation, nil
}

// SetPagesPerView switches between single and multi-page views. Cached
// bitmaps are sized for the old layout, so a change clears the cache.
func (s *Session) SetPagesPerView(n int) error {
	if n < 1 {
		return fmt.Errorf("pages per view must be at least 1, got %d", n)
	}

	s.mu.Lock()
	changed := n != s.perView
	s.perView = n
	if changed && !s.book.Empty() {
		s.current = s.align(s.current, n)
	}
	s.mu.Unlock()

	if changed {
		s.cache.Clear()
	}
	return nil
}

// SetViewSize changes the destination bitmap size.
func (s *Session) SetViewSize(size render.Size) {
	s.cache.SetViewSize(size)
}

// SetOffset changes the page number offset. The current view stays on the
// same physical page; markers keep their logical numbers.
func (s *Session) SetOffset(offset int) {
	s.mu.Lock()
	delta := offset - s.book.Offset()
	s.book.SetOffset(offset)
	s.current += delta
	s.mu.Unlock()

	if delta != 0 {
		s.cache.Clear()
		s.markDirty()
	}
}

// Dirty reports whether there are unsaved changes.
func (s *Session) Dirty() bool {
	return s.dirty.Load()
}

// Save writes rotations, offset and favorites back to the manifest.
func (s *Session) Save() error {
	if s.manifestPath == "" {
		return ErrNoManifest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.manifest
	m.PageNumberOffset = s.book.Offset()
	for i, v := range s.book.Volumes() {
		if i < len(m.Volumes) {
			m.Volumes[i].Rotation = int(v.Rotation)
		}
	}
	m.Favorites = s.favorites.Pages()

	if err := m.Save(s.manifestPath); err != nil {
		return err
	}
	s.dirty.Store(false)
	s.logger.Info("manifest saved", "path", s.manifestPath)
	return nil
}

// Reconfigure applies new cache tuning values.
func (s *Session) Reconfigure(cfg pagecache.Config) {
	s.cache.Reconfigure(cfg)
}

// Stats returns a snapshot of the session.
func (s *Session) Stats() Status {
	s.mu.Lock()
	current, perView := s.current, s.perView
	s.mu.Unlock()

	return Status{
		ID:           s.id,
		Title:        s.manifest.Title,
		Current:      current,
		PagesPerView: perView,
		FirstPage:    s.book.FirstPage(),
		LastPage:     s.book.LastPage(),
		Dirty:        s.Dirty(),
		Cache:        s.cache.Stats(),
	}
}

// Close stops rendering and closes every opened volume.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.generation++
	s.mu.Unlock()

	if s.Dirty() {
		s.logger.Warn("closing with unsaved changes")
	}
	return errors.Join(s.cache.Close(), s.book.Close())
}
