// Package render defines the page rendering capability used by the page
// cache: opening volume documents and turning one page into a bitmap.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrCanceled is the outcome of a render that was cancelled at a checkpoint.
// It is expected, not a failure: callers should not surface it to users.
var ErrCanceled = errors.New("render canceled")

// ErrFormat marks a volume that could be read but not parsed.
var ErrFormat = errors.New("unsupported or corrupt document")

// Rotation is a clockwise page rotation in degrees.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// ParseRotation validates a rotation given in degrees.
func ParseRotation(deg int) (Rotation, error) {
	switch r := Rotation(deg); r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return r, nil
	}
	return Rotate0, fmt.Errorf("invalid rotation %d: must be 0, 90, 180 or 270", deg)
}

// Next returns the rotation advanced by 90 degrees.
func (r Rotation) Next() Rotation {
	return (r + 90) % 360
}

// Quarter reports whether width and height swap under this rotation.
func (r Rotation) Quarter() bool {
	return r == Rotate90 || r == Rotate270
}

// Size is a destination bitmap size in pixels. A zero dimension means
// "unconstrained" on that axis.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Document is an opened volume. Implementations must allow concurrent page
// renders.
type Document interface {
	Path() string
	PageCount() int
	Close() error
}

// Opener opens volume documents by path.
type Opener interface {
	Open(ctx context.Context, path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Document, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Document, error) {
	return f(ctx, path)
}

// Renderer renders page index (0-based within the volume) of doc, rotated by
// rotation and fitted into size. Implementations check ctx before the slow
// part of the work and return ErrCanceled once ctx is done.
type Renderer interface {
	Render(ctx context.Context, doc Document, index int, rotation Rotation, size Size) (image.Image, error)
}

// OpenError reports a volume that failed to open.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open volume %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// RenderError reports a single page that failed to render.
type RenderError struct {
	Path  string
	Index int
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d of %s: %v", e.Index+1, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Canceled returns ErrCanceled if ctx is done, nil otherwise.
// Renderers call it at their checkpoints.
func Canceled(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCanceled
	}
	return nil
}
