// Package book maps a flat, offsettable logical page space onto an ordered
// list of volumes (physical documents).
package book

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/lectern/internal/lazy"
	"github.com/jackzampolin/lectern/internal/render"
)

// ErrAddressOutOfRange is returned for logical pages outside the book.
var ErrAddressOutOfRange = errors.New("logical page out of range")

// ErrClosed is returned when a document is requested from a closed book.
var ErrClosed = errors.New("book closed")

// Volume describes one physical document contributing a contiguous run of pages.
type Volume struct {
	Path      string
	PageCount int
	Rotation  render.Rotation
}

// Location is a resolved logical page: the volume and the 0-based page index
// within it.
type Location struct {
	Volume int `json:"volume" yaml:"volume"`
	Index  int `json:"index" yaml:"index"`
}

// VolumeInfo is a snapshot of one volume and its logical page range.
type VolumeInfo struct {
	Path      string          `json:"path" yaml:"path"`
	PageCount int             `json:"page_count" yaml:"page_count"`
	Rotation  render.Rotation `json:"rotation" yaml:"rotation"`
	FirstPage int             `json:"first_page" yaml:"first_page"`
	LastPage  int             `json:"last_page" yaml:"last_page"`
	Open      bool            `json:"open" yaml:"open"`
}

type volume struct {
	path     string
	pages    int
	rotation render.Rotation
	doc      lazy.Cell[render.Document]
}

// Config configures a new Book.
type Config struct {
	Volumes []Volume
	// Offset is the logical number of the first page. Negative offsets
	// number front matter before page 0.
	Offset int
	Opener render.Opener
	Logger *slog.Logger
	// OnDirty is called after a change that should be saved (rotation).
	OnDirty func()
	// OpenAttempts bounds retries of transient open errors (default: 1, no retry).
	OpenAttempts int
	// OpenRetryDelay is the pause between open attempts (default: 100ms).
	OpenRetryDelay time.Duration
}

// Book is the logical address space over a set of volumes.
// Safe for concurrent use.
type Book struct {
	mu      sync.RWMutex
	volumes []*volume
	offset  int
	closed  bool

	opener       render.Opener
	logger       *slog.Logger
	onDirty      func()
	openAttempts uint
	openDelay    time.Duration
}

// New creates a Book. Volumes are kept in the given order.
func New(cfg Config) (*Book, error) {
	if cfg.Opener == nil {
		return nil, fmt.Errorf("book requires a document opener")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempts := cfg.OpenAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := cfg.OpenRetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	b := &Book{
		offset:       cfg.Offset,
		opener:       cfg.Opener,
		logger:       logger,
		onDirty:      cfg.OnDirty,
		openAttempts: uint(attempts),
		openDelay:    delay,
	}

	for i, v := range cfg.Volumes {
		if v.PageCount < 0 {
			return nil, fmt.Errorf("volume %d (%s): negative page count %d", i, v.Path, v.PageCount)
		}
		if _, err := render.ParseRotation(int(v.Rotation)); err != nil {
			return nil, fmt.Errorf("volume %d (%s): %w", i, v.Path, err)
		}
		b.volumes = append(b.volumes, &volume{
			path:     v.Path,
			pages:    v.PageCount,
			rotation: v.Rotation,
		})
	}

	return b, nil
}

// Resolve maps a logical page to its volume and in-volume index by walking
// the volumes in order.
func (b *Book) Resolve(page int) (Location, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resolveLocked(page)
}

func (b *Book) resolveLocked(page int) (Location, error) {
	rel := page - b.offset
	if rel >= 0 {
		for i, v := range b.volumes {
			if rel < v.pages {
				return Location{Volume: i, Index: rel}, nil
			}
			rel -= v.pages
		}
	}
	return Location{}, b.outOfRangeLocked(page)
}

func (b *Book) outOfRangeLocked(page int) error {
	last := b.lastPageLocked()
	if last < b.offset {
		return fmt.Errorf("%w: page %d (book has no pages)", ErrAddressOutOfRange, page)
	}
	return fmt.Errorf("%w: page %d not in [%d, %d]", ErrAddressOutOfRange, page, b.offset, last)
}

// Contains reports whether page is a valid logical page.
func (b *Book) Contains(page int) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return page >= b.offset && page <= b.lastPageLocked()
}

// FirstPage returns the lowest logical page number (the offset).
func (b *Book) FirstPage() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.offset
}

// LastPage returns offset + total pages - 1. For an empty book it is
// smaller than FirstPage.
func (b *Book) LastPage() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPageLocked()
}

func (b *Book) lastPageLocked() int {
	return b.offset + b.pageCountLocked() - 1
}

func (b *Book) pageCountLocked() int {
	total := 0
	for _, v := range b.volumes {
		total += v.pages
	}
	return total
}

// PageCount returns the total number of pages across all volumes.
func (b *Book) PageCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pageCountLocked()
}

// Empty reports whether the book has no pages.
func (b *Book) Empty() bool {
	return b.PageCount() == 0
}

// Clamp limits page to [FirstPage, LastPage]. The result is meaningless for
// an empty book; check Empty first.
func (b *Book) Clamp(page int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return max(b.offset, min(page, b.lastPageLocked()))
}

// Offset returns the page number offset.
func (b *Book) Offset() int {
	return b.FirstPage()
}

// SetOffset changes the page number offset. Every logical page shifts by the
// difference; the volume mapping is unchanged.
func (b *Book) SetOffset(offset int) {
	b.mu.Lock()
	b.offset = offset
	b.mu.Unlock()
}

// VolumeCount returns the number of volumes.
func (b *Book) VolumeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.volumes)
}

// VolumeRange returns the logical page range of a volume. For an empty
// volume last is first - 1.
func (b *Book) VolumeRange(index int) (first, last int, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if index < 0 || index >= len(b.volumes) {
		return 0, 0, fmt.Errorf("volume %d out of range (book has %d)", index, len(b.volumes))
	}
	first = b.offset
	for _, v := range b.volumes[:index] {
		first += v.pages
	}
	return first, first + b.volumes[index].pages - 1, nil
}

// Volumes returns a snapshot of every volume with its logical range.
func (b *Book) Volumes() []VolumeInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]VolumeInfo, 0, len(b.volumes))
	first := b.offset
	for _, v := range b.volumes {
		_, open := v.doc.Peek()
		out = append(out, VolumeInfo{
			Path:      v.path,
			PageCount: v.pages,
			Rotation:  v.rotation,
			FirstPage: first,
			LastPage:  first + v.pages - 1,
			Open:      open,
		})
		first += v.pages
	}
	return out
}

// RotationOf returns the rotation of the volume owning page.
func (b *Book) RotationOf(page int) (render.Rotation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	loc, err := b.resolveLocked(page)
	if err != nil {
		return render.Rotate0, err
	}
	return b.volumes[loc.Volume].rotation, nil
}

// Rotate advances the rotation of the volume owning page by 90 degrees and
// reports the book as dirty. Returns the new rotation.
func (b *Book) Rotate(page int) (render.Rotation, error) {
	b.mu.Lock()
	loc, err := b.resolveLocked(page)
	if err != nil {
		b.mu.Unlock()
		return render.Rotate0, err
	}
	v := b.volumes[loc.Volume]
	v.rotation = v.rotation.Next()
	rotation := v.rotation
	onDirty := b.onDirty
	b.mu.Unlock()

	b.logger.Debug("volume rotated", "volume", v.path, "rotation", int(rotation))
	if onDirty != nil {
		onDirty()
	}
	return rotation, nil
}

// Document returns the opened document for a volume, opening it on first use.
// Concurrent callers share a single open. A failed open is reported to every
// caller waiting on it and retried on the next request.
func (b *Book) Document(ctx context.Context, index int) (render.Document, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrClosed
	}
	if index < 0 || index >= len(b.volumes) {
		n := len(b.volumes)
		b.mu.RUnlock()
		return nil, fmt.Errorf("volume %d out of range (book has %d)", index, n)
	}
	v := b.volumes[index]
	b.mu.RUnlock()

	doc, err := v.doc.Get(ctx, func(ctx context.Context) (render.Document, error) {
		return b.open(ctx, v)
	})
	if errors.Is(err, lazy.ErrClosed) {
		return nil, ErrClosed
	}
	return doc, err
}

// open opens a volume, retrying transient failures.
func (b *Book) open(ctx context.Context, v *volume) (render.Document, error) {
	start := time.Now()
	var doc render.Document

	err := retry.Do(
		func() error {
			d, err := b.opener.Open(ctx, v.path)
			if err != nil {
				return err
			}
			doc = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(b.openAttempts),
		retry.Delay(b.openDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryableOpenError),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Warn("volume open failed, retrying", "volume", v.path, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		b.logger.Error("volume open failed", "volume", v.path, "error", err)
		return nil, &render.OpenError{Path: v.path, Err: err}
	}

	if n := doc.PageCount(); n != v.pages {
		b.logger.Warn("volume page count differs from metadata",
			"volume", v.path, "metadata", v.pages, "document", n)
	}
	b.logger.Debug("volume opened", "volume", v.path, "duration", time.Since(start))
	return doc, nil
}

// retryableOpenError reports whether an open failure may be transient.
// Missing files, permission problems and unparsable documents are not.
func retryableOpenError(err error) bool {
	return !errors.Is(err, fs.ErrNotExist) &&
		!errors.Is(err, fs.ErrPermission) &&
		!errors.Is(err, render.ErrFormat)
}

// Close closes every opened document. Documents still being opened are
// closed when their open completes.
func (b *Book) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	volumes := b.volumes
	b.mu.Unlock()

	var (
		errMu sync.Mutex
		errs  []error
	)
	for _, v := range volumes {
		v.doc.Close(func(doc render.Document) {
			if err := doc.Close(); err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("close %s: %w", v.path, err))
				errMu.Unlock()
			}
		})
	}

	errMu.Lock()
	defer errMu.Unlock()
	return errors.Join(errs...)
}
