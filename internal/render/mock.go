package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"
)

// MockDocument is an in-memory Document for testing.
type MockDocument struct {
	DocPath string
	Pages   int
	closed  atomic.Bool
}

func (d *MockDocument) Path() string   { return d.DocPath }
func (d *MockDocument) PageCount() int { return d.Pages }

func (d *MockDocument) Close() error {
	d.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (d *MockDocument) Closed() bool { return d.closed.Load() }

// MockOpener is an Opener for testing.
type MockOpener struct {
	// Pages maps a path to its page count. Unknown paths fail to open.
	Pages map[string]int
	// Latency delays every open.
	Latency time.Duration
	// Gate, when set, blocks opens until it is closed.
	Gate chan struct{}
	// Fail, when set, is consulted before opening.
	Fail func(path string) error

	mu     sync.Mutex
	opens  map[string]int
	opened []*MockDocument
}

// Open implements Opener.
func (o *MockOpener) Open(ctx context.Context, path string) (Document, error) {
	o.mu.Lock()
	if o.opens == nil {
		o.opens = make(map[string]int)
	}
	o.opens[path]++
	o.mu.Unlock()

	if o.Gate != nil {
		select {
		case <-o.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if o.Latency > 0 {
		time.Sleep(o.Latency)
	}
	if o.Fail != nil {
		if err := o.Fail(path); err != nil {
			return nil, err
		}
	}

	pages, ok := o.Pages[path]
	if !ok {
		return nil, fmt.Errorf("mock: no such volume %s", path)
	}
	doc := &MockDocument{DocPath: path, Pages: pages}

	o.mu.Lock()
	o.opened = append(o.opened, doc)
	o.mu.Unlock()
	return doc, nil
}

// Opens returns how many times path was opened.
func (o *MockOpener) Opens(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[path]
}

// Opened returns every document handed out.
func (o *MockOpener) Opened() []*MockDocument {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*MockDocument, len(o.opened))
	copy(out, o.opened)
	return out
}

// MockCall records one Render invocation.
type MockCall struct {
	Path     string
	Index    int
	Rotation Rotation
	Size     Size
}

// MockRenderer is a Renderer for testing. Rendered pages are solid-color
// images whose base size is 60x90 before rotation and fitting.
type MockRenderer struct {
	// Latency delays every render; a cancelled ctx cuts it short.
	Latency time.Duration
	// Gate, when set, blocks renders until it is closed or ctx is done.
	Gate chan struct{}
	// Fail, when set, is consulted before rendering.
	Fail func(path string, index int) error

	mu       sync.Mutex
	calls    []MockCall
	inFlight atomic.Int32
	peak     atomic.Int32
}

// Render implements Renderer.
func (r *MockRenderer) Render(ctx context.Context, doc Document, index int, rotation Rotation, size Size) (image.Image, error) {
	if err := Canceled(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.calls = append(r.calls, MockCall{Path: doc.Path(), Index: index, Rotation: rotation, Size: size})
	r.mu.Unlock()

	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return nil, ErrCanceled
		}
	}
	if r.Latency > 0 {
		select {
		case <-time.After(r.Latency):
		case <-ctx.Done():
			return nil, ErrCanceled
		}
	}

	if r.Fail != nil {
		if err := r.Fail(doc.Path(), index); err != nil {
			return nil, &RenderError{Path: doc.Path(), Index: index, Err: err}
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, 60, 90))
	fill := color.RGBA{R: uint8(index), G: uint8(len(doc.Path())), B: 200, A: 255}
	for y := 0; y < 90; y++ {
		for x := 0; x < 60; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	return Fit(img, rotation, size), nil
}

// Calls returns every recorded render call.
func (r *MockRenderer) Calls() []MockCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MockCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor counts render calls for one page of one volume.
func (r *MockRenderer) CallsFor(path string, index int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Path == path && c.Index == index {
			n++
		}
	}
	return n
}

// PeakConcurrency returns the highest number of simultaneous renders seen.
func (r *MockRenderer) PeakConcurrency() int {
	return int(r.peak.Load())
}

var (
	_ Opener   = (*MockOpener)(nil)
	_ Renderer = (*MockRenderer)(nil)
	_ Document = (*MockDocument)(nil)
)
