package book

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/lectern/internal/markers"
	"github.com/jackzampolin/lectern/internal/render"
)

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

const manifestSchemaURL = "https://github.com/jackzampolin/lectern/manifest.schema.json"

var (
	manifestSchemaOnce sync.Once
	manifestSchema     *jsonschema.Schema
	manifestSchemaErr  error
)

// Manifest is the on-disk description of a book: its volumes in reading
// order, the page number offset, TOC entries and favorites.
type Manifest struct {
	Title            string         `yaml:"title,omitempty" json:"title,omitempty"`
	PageNumberOffset int            `yaml:"page_number_offset" json:"page_number_offset"`
	Volumes          []VolumeSpec   `yaml:"volumes" json:"volumes"`
	TOC              []TOCEntrySpec `yaml:"toc,omitempty" json:"toc,omitempty"`
	Favorites        []int          `yaml:"favorites,omitempty" json:"favorites,omitempty"`

	// dir resolves relative volume paths.
	dir string
}

// VolumeSpec is one volume entry in a manifest.
type VolumeSpec struct {
	Path string `yaml:"path" json:"path"`
	// PageCount is counted from the document when zero.
	PageCount int `yaml:"page_count,omitempty" json:"page_count,omitempty"`
	Rotation  int `yaml:"rotation" json:"rotation"`
}

// TOCEntrySpec is one table of contents line in a manifest.
type TOCEntrySpec struct {
	Page  int    `yaml:"page" json:"page"`
	Title string `yaml:"title" json:"title"`
}

// PageCounter counts the pages of a volume file.
type PageCounter func(path string) (int, error)

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve manifest path: %w", err)
	}
	m.dir = filepath.Dir(abs)
	return m, nil
}

// ParseManifest validates YAML manifest data against the manifest schema and
// decodes it. Relative volume paths resolve against the working directory.
func ParseManifest(data []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := validateManifest(doc); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

func validateManifest(doc any) error {
	manifestSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(manifestSchemaURL, bytes.NewReader(manifestSchemaJSON)); err != nil {
			manifestSchemaErr = fmt.Errorf("failed to load manifest schema: %w", err)
			return
		}
		manifestSchema, manifestSchemaErr = compiler.Compile(manifestSchemaURL)
	})
	if manifestSchemaErr != nil {
		return manifestSchemaErr
	}

	// The validator works on JSON-decoded values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode manifest for validation: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var jsonDoc any
	if err := dec.Decode(&jsonDoc); err != nil {
		return fmt.Errorf("failed to decode manifest for validation: %w", err)
	}

	if err := manifestSchema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("manifest does not match schema: %w", err)
	}
	return nil
}

// NewManifest builds a manifest from volume paths, ordering them by numeric
// suffix. The title is derived from the first file when empty.
func NewManifest(title string, paths []string) *Manifest {
	sorted := SortVolumePaths(paths)
	if title == "" && len(sorted) > 0 {
		title = DeriveTitle(sorted[0])
	}

	m := &Manifest{Title: title}
	for _, p := range sorted {
		m.Volumes = append(m.Volumes, VolumeSpec{Path: p})
	}
	return m
}

// Dir returns the directory relative volume paths resolve against.
func (m *Manifest) Dir() string {
	return m.dir
}

// SetDir changes the directory relative volume paths resolve against.
func (m *Manifest) SetDir(dir string) {
	m.dir = dir
}

// ResolvePath returns the volume path made absolute against the manifest directory.
func (m *Manifest) ResolvePath(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}

// BookVolumes converts the manifest volumes for New. Volumes with no page
// count are counted with count; a nil count leaves them empty.
func (m *Manifest) BookVolumes(count PageCounter) ([]Volume, error) {
	out := make([]Volume, 0, len(m.Volumes))
	for i, vs := range m.Volumes {
		rotation, err := render.ParseRotation(vs.Rotation)
		if err != nil {
			return nil, fmt.Errorf("volume %d (%s): %w", i, vs.Path, err)
		}

		path := m.ResolvePath(vs.Path)
		pages := vs.PageCount
		if pages == 0 && count != nil {
			pages, err = count(path)
			if err != nil {
				return nil, fmt.Errorf("volume %d: %w", i, err)
			}
		}

		out = append(out, Volume{Path: path, PageCount: pages, Rotation: rotation})
	}
	return out, nil
}

// TOCEntries converts the manifest TOC.
func (m *Manifest) TOCEntries() []markers.TOCEntry {
	out := make([]markers.TOCEntry, 0, len(m.TOC))
	for _, e := range m.TOC {
		out = append(out, markers.TOCEntry{Page: e.Page, Title: e.Title})
	}
	return out
}

// FillPageCounts stores counted page counts for volumes that have none.
func (m *Manifest) FillPageCounts(count PageCounter) error {
	for i := range m.Volumes {
		if m.Volumes[i].PageCount > 0 {
			continue
		}
		n, err := count(m.ResolvePath(m.Volumes[i].Path))
		if err != nil {
			return fmt.Errorf("volume %d: %w", i, err)
		}
		m.Volumes[i].PageCount = n
	}
	return nil
}

// Save writes the manifest atomically.
func (m *Manifest) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
