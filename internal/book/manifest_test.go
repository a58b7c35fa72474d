package book

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/lectern/internal/markers"
	"github.com/jackzampolin/lectern/internal/render"
)

const sampleManifest = `title: Crusade in Europe
page_number_offset: -2
volumes:
  - path: crusade-1.pdf
    page_count: 10
    rotation: 0
  - path: crusade-2.pdf
    rotation: 90
toc:
  - page: 1
    title: Chapter 1
favorites: [3, 7]
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, sampleManifest)

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "Crusade in Europe", m.Title)
	assert.Equal(t, -2, m.PageNumberOffset)
	assert.Equal(t, []int{3, 7}, m.Favorites)
	assert.Equal(t, filepath.Dir(path), m.Dir())

	want := []markers.TOCEntry{{Page: 1, Title: "Chapter 1"}}
	if diff := cmp.Diff(want, m.TOCEntries()); diff != "" {
		t.Errorf("toc mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadManifest_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing volumes", content: "title: x\n"},
		{name: "bad rotation", content: "volumes:\n  - path: a.pdf\n    rotation: 45\n"},
		{name: "negative page count", content: "volumes:\n  - path: a.pdf\n    page_count: -1\n"},
		{name: "unknown field", content: "volumes: []\ncolour: red\n"},
		{name: "empty path", content: "volumes:\n  - path: \"\"\n"},
		{name: "not yaml", content: "volumes: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestLoadManifest_Missing(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestManifest_BookVolumes(t *testing.T) {
	path := writeManifest(t, sampleManifest)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	var counted []string
	vols, err := m.BookVolumes(func(p string) (int, error) {
		counted = append(counted, p)
		return 5, nil
	})
	require.NoError(t, err)

	dir := filepath.Dir(path)
	want := []Volume{
		{Path: filepath.Join(dir, "crusade-1.pdf"), PageCount: 10, Rotation: render.Rotate0},
		{Path: filepath.Join(dir, "crusade-2.pdf"), PageCount: 5, Rotation: render.Rotate90},
	}
	if diff := cmp.Diff(want, vols); diff != "" {
		t.Errorf("volumes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{filepath.Join(dir, "crusade-2.pdf")}, counted)

	_, err = m.BookVolumes(func(string) (int, error) { return 0, errors.New("unreadable") })
	require.Error(t, err)
}

func TestManifest_ResolvePath(t *testing.T) {
	m := &Manifest{}
	assert.Equal(t, "a.pdf", m.ResolvePath("a.pdf"))

	m.SetDir("/books")
	assert.Equal(t, "/books/a.pdf", m.ResolvePath("a.pdf"))
	assert.Equal(t, "/elsewhere/a.pdf", m.ResolvePath("/elsewhere/a.pdf"))
}

func TestManifest_SaveRoundTrip(t *testing.T) {
	m := NewManifest("", []string{"war-2.pdf", "war-10.pdf", "war-1.pdf"})
	assert.Equal(t, "war", m.Title)
	m.PageNumberOffset = -4
	m.Volumes[1].Rotation = 180
	m.Favorites = []int{2}
	m.TOC = []TOCEntrySpec{{Page: 0, Title: "Preface"}}

	path := filepath.Join(t.TempDir(), "war.yaml")
	require.NoError(t, m.Save(path))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)

	if diff := cmp.Diff(m, loaded, cmpopts.IgnoreUnexported(Manifest{})); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "war-1.pdf", loaded.Volumes[0].Path)
	assert.Equal(t, "war-10.pdf", loaded.Volumes[2].Path)
}

func TestManifest_FillPageCounts(t *testing.T) {
	m := NewManifest("t", []string{"a-1.pdf", "a-2.pdf"})
	m.Volumes[0].PageCount = 3

	require.NoError(t, m.FillPageCounts(func(string) (int, error) { return 8, nil }))
	assert.Equal(t, 3, m.Volumes[0].PageCount)
	assert.Equal(t, 8, m.Volumes[1].PageCount)
}
