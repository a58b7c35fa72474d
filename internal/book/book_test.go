package book

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/lectern/internal/render"
)

func newTestBook(t *testing.T, counts []int, offset int) (*Book, *render.MockOpener) {
	t.Helper()
	opener := &render.MockOpener{Pages: map[string]int{}}
	var vols []Volume
	for i, n := range counts {
		path := fmt.Sprintf("vol-%d.pdf", i+1)
		opener.Pages[path] = n
		vols = append(vols, Volume{Path: path, PageCount: n})
	}
	b, err := New(Config{Volumes: vols, Offset: offset, Opener: opener})
	require.NoError(t, err)
	return b, opener
}

func TestBook_Resolve(t *testing.T) {
	b, _ := newTestBook(t, []int{10, 5}, -2)

	assert.Equal(t, -2, b.FirstPage())
	assert.Equal(t, 12, b.LastPage())
	assert.Equal(t, 15, b.PageCount())

	tests := []struct {
		page   int
		volume int
		index  int
	}{
		{page: -2, volume: 0, index: 0},
		{page: 0, volume: 0, index: 2},
		{page: 7, volume: 0, index: 9},
		{page: 8, volume: 1, index: 0},
		{page: 12, volume: 1, index: 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			loc, err := b.Resolve(tt.page)
			require.NoError(t, err)
			assert.Equal(t, Location{Volume: tt.volume, Index: tt.index}, loc)
		})
	}

	for _, page := range []int{-3, 13, 100} {
		t.Run(fmt.Sprintf("reject %d", page), func(t *testing.T) {
			_, err := b.Resolve(page)
			require.ErrorIs(t, err, ErrAddressOutOfRange)
			assert.Contains(t, err.Error(), "[-2, 12]")
			assert.False(t, b.Contains(page))
		})
	}
}

func TestBook_ResolveRoundTrip(t *testing.T) {
	counts := []int{3, 0, 7, 1, 12}
	b, _ := newTestBook(t, counts, 5)

	for p := b.FirstPage(); p <= b.LastPage(); p++ {
		loc, err := b.Resolve(p)
		require.NoError(t, err)
		require.Less(t, loc.Index, counts[loc.Volume], "page %d", p)

		sum := 0
		for _, n := range counts[:loc.Volume] {
			sum += n
		}
		assert.Equal(t, p, sum+loc.Index+b.Offset(), "page %d", p)
	}
}

func TestBook_SetOffsetShiftsPages(t *testing.T) {
	b, _ := newTestBook(t, []int{4, 6}, 0)

	before := make(map[int]Location)
	for p := b.FirstPage(); p <= b.LastPage(); p++ {
		loc, err := b.Resolve(p)
		require.NoError(t, err)
		before[p] = loc
	}

	const delta = -3
	b.SetOffset(delta)
	assert.Equal(t, 9+delta, b.LastPage())

	for p, want := range before {
		got, err := b.Resolve(p + delta)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestBook_Empty(t *testing.T) {
	t.Run("no volumes", func(t *testing.T) {
		b, _ := newTestBook(t, nil, 4)
		assert.True(t, b.Empty())
		assert.Less(t, b.LastPage(), b.FirstPage())

		_, err := b.Resolve(4)
		require.ErrorIs(t, err, ErrAddressOutOfRange)
		assert.Contains(t, err.Error(), "no pages")
	})

	t.Run("only empty volumes", func(t *testing.T) {
		b, _ := newTestBook(t, []int{0, 0}, 0)
		assert.True(t, b.Empty())
		_, err := b.Resolve(0)
		require.ErrorIs(t, err, ErrAddressOutOfRange)
	})
}

func TestBook_Clamp(t *testing.T) {
	b, _ := newTestBook(t, []int{10, 5}, -2)
	assert.Equal(t, -2, b.Clamp(-50))
	assert.Equal(t, 3, b.Clamp(3))
	assert.Equal(t, 12, b.Clamp(99))
}

func TestBook_VolumeRange(t *testing.T) {
	b, _ := newTestBook(t, []int{10, 5}, -2)

	first, last, err := b.VolumeRange(1)
	require.NoError(t, err)
	assert.Equal(t, 8, first)
	assert.Equal(t, 12, last)

	_, _, err = b.VolumeRange(2)
	require.Error(t, err)

	infos := b.Volumes()
	require.Len(t, infos, 2)
	assert.Equal(t, -2, infos[0].FirstPage)
	assert.Equal(t, 7, infos[0].LastPage)
	assert.False(t, infos[0].Open)
}

func TestNew_Validation(t *testing.T) {
	opener := &render.MockOpener{}

	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Opener: opener, Volumes: []Volume{{Path: "a.pdf", PageCount: -1}}})
	require.Error(t, err)

	_, err = New(Config{Opener: opener, Volumes: []Volume{{Path: "a.pdf", PageCount: 1, Rotation: 45}}})
	require.Error(t, err)
}

func TestBook_Rotate(t *testing.T) {
	var dirty atomic.Int32
	opener := &render.MockOpener{Pages: map[string]int{"a.pdf": 3, "b.pdf": 3}}
	b, err := New(Config{
		Volumes: []Volume{{Path: "a.pdf", PageCount: 3}, {Path: "b.pdf", PageCount: 3, Rotation: render.Rotate270}},
		Opener:  opener,
		OnDirty: func() { dirty.Add(1) },
	})
	require.NoError(t, err)

	r, err := b.Rotate(1)
	require.NoError(t, err)
	assert.Equal(t, render.Rotate90, r)
	assert.Equal(t, int32(1), dirty.Load())

	// Other pages of the same volume follow.
	r, err = b.RotationOf(2)
	require.NoError(t, err)
	assert.Equal(t, render.Rotate90, r)

	// Wraps at 360.
	r, err = b.Rotate(4)
	require.NoError(t, err)
	assert.Equal(t, render.Rotate0, r)
	assert.Equal(t, int32(2), dirty.Load())

	_, err = b.Rotate(6)
	require.ErrorIs(t, err, ErrAddressOutOfRange)
	assert.Equal(t, int32(2), dirty.Load())
}

func TestBook_DocumentOpensOnce(t *testing.T) {
	gate := make(chan struct{})
	opener := &render.MockOpener{Pages: map[string]int{"a.pdf": 4}, Gate: gate}
	b, err := New(Config{Volumes: []Volume{{Path: "a.pdf", PageCount: 4}}, Opener: opener})
	require.NoError(t, err)

	const callers = 8
	docs := make([]render.Document, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docs[i], errs[i] = b.Document(context.Background(), 0)
		}(i)
	}

	// Let every caller attach before the open completes.
	require.Eventually(t, func() bool { return opener.Opens("a.pdf") == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, docs[0], docs[i])
	}
	assert.Equal(t, 1, opener.Opens("a.pdf"))
	assert.True(t, b.Volumes()[0].Open)
}

func TestBook_DocumentFailureIsRetryable(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	opener := &render.MockOpener{
		Pages: map[string]int{"a.pdf": 2},
		Fail: func(string) error {
			if fail.Load() {
				return fs.ErrNotExist
			}
			return nil
		},
	}
	b, err := New(Config{Volumes: []Volume{{Path: "a.pdf", PageCount: 2}}, Opener: opener, OpenAttempts: 3})
	require.NoError(t, err)

	_, err = b.Document(context.Background(), 0)
	var openErr *render.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "a.pdf", openErr.Path)
	require.ErrorIs(t, err, fs.ErrNotExist)
	// Not-exist errors are not retried within an attempt.
	assert.Equal(t, 1, opener.Opens("a.pdf"))

	fail.Store(false)
	doc, err := b.Document(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount())
	assert.Equal(t, 2, opener.Opens("a.pdf"))
}

func TestBook_DocumentRetriesTransientErrors(t *testing.T) {
	var failures atomic.Int32
	failures.Store(2)
	opener := &render.MockOpener{
		Pages: map[string]int{"a.pdf": 2},
		Fail: func(string) error {
			if failures.Add(-1) >= 0 {
				return errors.New("resource temporarily unavailable")
			}
			return nil
		},
	}
	b, err := New(Config{
		Volumes:        []Volume{{Path: "a.pdf", PageCount: 2}},
		Opener:         opener,
		OpenAttempts:   3,
		OpenRetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	_, err = b.Document(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, opener.Opens("a.pdf"))
}

func TestBook_DocumentOutOfRange(t *testing.T) {
	b, _ := newTestBook(t, []int{1}, 0)
	_, err := b.Document(context.Background(), 1)
	require.Error(t, err)
}

func TestBook_Close(t *testing.T) {
	b, opener := newTestBook(t, []int{2, 2}, 0)

	_, err := b.Document(context.Background(), 0)
	require.NoError(t, err)

	require.NoError(t, b.Close())
	opened := opener.Opened()
	require.Len(t, opened, 1)
	assert.True(t, opened[0].Closed())

	_, err = b.Document(context.Background(), 1)
	require.ErrorIs(t, err, ErrClosed)

	// Closing twice is a no-op.
	require.NoError(t, b.Close())
}
