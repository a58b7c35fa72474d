// Package export renders a range of logical pages to PNG files through the
// render cache.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"

	natomic "github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/pagecache"
	"github.com/jackzampolin/lectern/internal/render"
)

// ErrEmptyRange is returned when first > last after clamping.
var ErrEmptyRange = errors.New("no pages to export")

// Options selects the pages and where they go.
type Options struct {
	First, Last int
	// Path returns the output file for a logical page.
	Path func(page int) string
	// Concurrency bounds renders in flight (default: NumCPU, never more
	// than the cache capacity).
	Concurrency int
	// ContinueOnError records per-page failures instead of stopping.
	ContinueOnError bool
	Logger          *slog.Logger
}

// Failure is a page that could not be exported.
type Failure struct {
	Page  int    `json:"page" yaml:"page"`
	Error string `json:"error" yaml:"error"`
}

// Result summarizes an export.
type Result struct {
	First    int       `json:"first" yaml:"first"`
	Last     int       `json:"last" yaml:"last"`
	Written  int       `json:"written" yaml:"written"`
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Run exports [opts.First, opts.Last] clamped to the book. Pages are
// requested through cache, each written atomically once rendered.
func Run(ctx context.Context, b *book.Book, cache *pagecache.Cache, opts Options) (Result, error) {
	if b.Empty() {
		return Result{}, ErrEmptyRange
	}
	if opts.Path == nil {
		return Result{}, errors.New("export requires an output path function")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	first, last := b.Clamp(opts.First), b.Clamp(opts.Last)
	if opts.First > b.LastPage() || opts.Last < b.FirstPage() || first > last {
		return Result{}, fmt.Errorf("%w: [%d, %d] outside [%d, %d]", ErrEmptyRange, opts.First, opts.Last, b.FirstPage(), b.LastPage())
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	// Keep in-flight pages well inside the cache so eviction mostly takes
	// pages that were already written.
	if c := max(cache.Stats().Capacity/2, 1); limit > c {
		limit = c
	}

	res := Result{First: first, Last: last}
	var written atomic.Int64
	failures := make(chan Failure, last-first+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for page := first; page <= last; page++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := exportPage(gctx, cache, page, opts.Path(page))
			if err == nil {
				written.Add(1)
				logger.Debug("page exported", "page", page)
				return nil
			}
			if opts.ContinueOnError && !errors.Is(err, context.Canceled) {
				logger.Warn("page export failed", "page", page, "error", err)
				failures <- Failure{Page: page, Error: err.Error()}
				return nil
			}
			return fmt.Errorf("page %d: %w", page, err)
		})
	}
	err := g.Wait()
	close(failures)

	res.Written = int(written.Load())
	for f := range failures {
		res.Failures = append(res.Failures, f)
	}
	slices.SortFunc(res.Failures, func(a, b Failure) int { return a.Page - b.Page })
	if err == nil {
		err = ctx.Err()
	}
	logger.Info("export finished", "first", first, "last", last, "written", res.Written, "failed", len(res.Failures))
	return res, err
}

// renderAttempts bounds re-requests of a page evicted before it finished.
const renderAttempts = 5

func exportPage(ctx context.Context, cache *pagecache.Cache, page int, path string) error {
	var img image.Image
	var err error
	for attempt := 0; attempt < renderAttempts; attempt++ {
		e := cache.GetOrCreate(page)
		if e == nil {
			return fmt.Errorf("%w: page %d", book.ErrAddressOutOfRange, page)
		}
		img, err = e.Wait(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, render.ErrCanceled) {
			break
		}
	}
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := natomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
