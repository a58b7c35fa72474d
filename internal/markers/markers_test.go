package markers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_AddKeepsKeysSorted(t *testing.T) {
	c := NewCollection[string]()
	c.Add(10, "ten")
	c.Add(-2, "front")
	c.Add(5, "five")
	c.Add(5, "five again")

	if diff := cmp.Diff([]int{-2, 5, 10}, c.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"five", "five again"}, c.Exact(5))
	assert.Equal(t, 3, c.Len())
}

func TestCollection_Remove(t *testing.T) {
	c := NewCollection[int]()
	c.Add(1, 1)
	c.Add(2, 2)

	assert.True(t, c.Remove(1))
	assert.False(t, c.Remove(1))
	assert.Equal(t, []int{2}, c.Keys())
	assert.Nil(t, c.Exact(1))
}

func TestCollection_AtOrBefore(t *testing.T) {
	c := NewCollection[string]()
	c.Add(3, "a")
	c.Add(8, "b")

	tests := []struct {
		page    int
		wantKey int
		wantOK  bool
	}{
		{page: 2, wantOK: false},
		{page: 3, wantKey: 3, wantOK: true},
		{page: 7, wantKey: 3, wantOK: true},
		{page: 8, wantKey: 8, wantOK: true},
		{page: 100, wantKey: 8, wantOK: true},
	}
	for _, tt := range tests {
		key, _, ok := c.AtOrBefore(tt.page)
		assert.Equal(t, tt.wantOK, ok, "page %d", tt.page)
		if tt.wantOK {
			assert.Equal(t, tt.wantKey, key, "page %d", tt.page)
		}
	}

	empty := NewCollection[string]()
	_, _, ok := empty.AtOrBefore(4)
	assert.False(t, ok)
}

func TestFavorites_Next(t *testing.T) {
	f := NewFavorites(4, 9, 15, 9)
	require.Equal(t, []int{4, 9, 15}, f.Pages())

	tests := []struct {
		name    string
		current int
		dir     Direction
		want    int
		wantOK  bool
	}{
		{"forward from before first", 1, Forward, 4, true},
		{"forward skips current favorite", 9, Forward, 15, true},
		{"forward between", 10, Forward, 15, true},
		{"forward past last", 15, Forward, 0, false},
		{"backward skips current favorite", 9, Backward, 4, true},
		{"backward between", 12, Backward, 9, true},
		{"backward before first", 4, Backward, 0, false},
		{"backward after last", 40, Backward, 15, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := f.Next(tt.current, tt.dir)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFavorites_EmptyAndToggle(t *testing.T) {
	f := NewFavorites()
	_, ok := f.Next(3, Forward)
	assert.False(t, ok)
	_, ok = f.Next(3, Backward)
	assert.False(t, ok)

	assert.True(t, f.Toggle(3))
	assert.True(t, f.Contains(3))
	assert.False(t, f.Toggle(3))
	assert.False(t, f.Contains(3))
}

func TestTOC_DescriptionFor(t *testing.T) {
	toc := NewTOC(
		TOCEntry{Page: 10, Title: "Chapter 2"},
		TOCEntry{Page: 1, Title: "Chapter 1"},
		TOCEntry{Page: 10, Title: "Part II"},
	)

	_, ok := toc.DescriptionFor(0)
	assert.False(t, ok, "no entry before the first chapter")

	desc, ok := toc.DescriptionFor(5)
	require.True(t, ok)
	assert.Equal(t, "Chapter 1", desc)

	desc, ok = toc.DescriptionFor(12)
	require.True(t, ok)
	assert.Equal(t, "Chapter 2 / Part II", desc)

	assert.Len(t, toc.Entries(), 3)
	assert.Equal(t, 2, toc.Len())
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection("prev")
	assert.True(t, ok)
	assert.Equal(t, Backward, d)

	d, ok = ParseDirection("")
	assert.True(t, ok)
	assert.Equal(t, Forward, d)

	_, ok = ParseDirection("sideways")
	assert.False(t, ok)
}
