package pagecache

import (
	"context"
	"image"
	"sync"

	"github.com/jackzampolin/lectern/internal/render"
)

// Entry is one in-flight or completed page render. Results are immutable
// once the entry completes and may be shared freely.
type Entry struct {
	page int
	age  uint64

	ctx    context.Context
	cancel context.CancelFunc

	once sync.Once
	done chan struct{}
	img  image.Image
	err  error
}

func newEntry(parent context.Context, page int, age uint64) *Entry {
	ctx, cancel := context.WithCancel(parent)
	return &Entry{
		page:   page,
		age:    age,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Page returns the logical page number.
func (e *Entry) Page() int { return e.page }

// Age returns the creation order of the entry within its cache.
func (e *Entry) Age() uint64 { return e.age }

// Done is closed when the entry completes.
func (e *Entry) Done() <-chan struct{} { return e.done }

// Completed reports whether the render finished, failed or was cancelled.
func (e *Entry) Completed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the entry completes or ctx is done.
// A cancelled entry returns render.ErrCanceled.
func (e *Entry) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-e.done:
		return e.img, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking. done is false while the
// entry is still running.
func (e *Entry) Result() (img image.Image, done bool, err error) {
	if !e.Completed() {
		return nil, false, nil
	}
	return e.img, true, e.err
}

// resolve records the first outcome; later ones are discarded.
func (e *Entry) resolve(img image.Image, err error) bool {
	resolved := false
	e.once.Do(func() {
		e.img, e.err = img, err
		close(e.done)
		resolved = true
	})
	return resolved
}

// abort cancels the job and completes the entry as cancelled.
func (e *Entry) abort() {
	e.cancel()
	e.resolve(nil, render.ErrCanceled)
}
