package export

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/pagecache"
	"github.com/jackzampolin/lectern/internal/render"
)

// newTestBook builds a 12 page single-volume book numbered from -2.
func newTestBook(t *testing.T, r render.Renderer, capacity int) (*book.Book, *pagecache.Cache) {
	t.Helper()
	b, err := book.New(book.Config{
		Volumes: []book.Volume{{Path: "scan.pdf", PageCount: 12}},
		Offset:  -2,
		Opener:  &render.MockOpener{Pages: map[string]int{"scan.pdf": 12}},
	})
	require.NoError(t, err)
	c, err := pagecache.New(b, r, pagecache.Config{Capacity: capacity, Workers: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
		_ = b.Close()
	})
	return b, c
}

func pathIn(dir string) func(int) string {
	return func(page int) string {
		return filepath.Join(dir, fmt.Sprintf("p%d.png", page))
	}
}

func TestRun_WritesEveryPage(t *testing.T) {
	r := &render.MockRenderer{Latency: 2 * time.Millisecond}
	b, c := newTestBook(t, r, 4)
	dir := t.TempDir()

	res, err := Run(context.Background(), b, c, Options{First: -100, Last: 100, Path: pathIn(dir), Concurrency: 8})
	require.NoError(t, err)
	assert.Equal(t, -2, res.First)
	assert.Equal(t, 9, res.Last)
	assert.Equal(t, 12, res.Written)
	assert.Empty(t, res.Failures)

	for page := -2; page <= 9; page++ {
		f, err := os.Open(pathIn(dir)(page))
		require.NoError(t, err, "page %d", page)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 60, img.Bounds().Dx())
	}

	// The cache never grew past its capacity while exporting.
	st := c.Stats()
	assert.LessOrEqual(t, st.Entries, 4)
	assert.Positive(t, st.Evictions)
}

func TestRun_Subrange(t *testing.T) {
	b, c := newTestBook(t, &render.MockRenderer{}, 50)
	dir := t.TempDir()

	res, err := Run(context.Background(), b, c, Options{First: 3, Last: 5, Path: pathIn(dir)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRun_Failures(t *testing.T) {
	fail := func(path string, index int) error {
		if index == 4 {
			return errors.New("torn page")
		}
		return nil
	}

	t.Run("continue on error", func(t *testing.T) {
		b, c := newTestBook(t, &render.MockRenderer{Fail: fail}, 50)
		res, err := Run(context.Background(), b, c, Options{First: -2, Last: 9, Path: pathIn(t.TempDir()), ContinueOnError: true})
		require.NoError(t, err)
		assert.Equal(t, 11, res.Written)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, 2, res.Failures[0].Page)
		assert.Contains(t, res.Failures[0].Error, "torn page")
	})

	t.Run("stop on error", func(t *testing.T) {
		b, c := newTestBook(t, &render.MockRenderer{Fail: fail}, 50)
		_, err := Run(context.Background(), b, c, Options{First: -2, Last: 9, Path: pathIn(t.TempDir())})
		require.Error(t, err)
		var re *render.RenderError
		assert.ErrorAs(t, err, &re)
		assert.Contains(t, err.Error(), "page 2")
	})
}

func TestRun_EmptyRange(t *testing.T) {
	b, c := newTestBook(t, &render.MockRenderer{}, 50)

	_, err := Run(context.Background(), b, c, Options{First: 20, Last: 30, Path: pathIn(t.TempDir())})
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = Run(context.Background(), b, c, Options{First: 5, Last: 1, Path: pathIn(t.TempDir())})
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = Run(context.Background(), b, c, Options{First: 0, Last: 1})
	assert.Error(t, err)
}

func TestRun_Canceled(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	b, c := newTestBook(t, &render.MockRenderer{Gate: gate}, 50)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := Run(ctx, b, c, Options{First: -2, Last: 9, Path: pathIn(t.TempDir())})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Written)
}
