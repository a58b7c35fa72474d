package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the lectern home directory.
	DefaultDirName = ".lectern"

	// ExportsDirName is the subdirectory for exported page images.
	ExportsDirName = "exports"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the lectern home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.lectern).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ExportsDir returns the directory for exported page images.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, ExportsDirName)
}

// BookExportDir returns the export directory for one book. The title is
// reduced to a filesystem-safe slug.
func (d *Dir) BookExportDir(title string) string {
	return filepath.Join(d.ExportsDir(), Slug(title))
}

// PageExportPath returns the path of an exported page image. Logical page
// numbers may be negative, so the sign is spelled out.
func (d *Dir) PageExportPath(title string, page int) string {
	name := fmt.Sprintf("page_%04d.png", page)
	if page < 0 {
		name = fmt.Sprintf("page_m%04d.png", -page)
	}
	return filepath.Join(d.BookExportDir(title), name)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create exports directory (this also creates the parent)
	if err := os.MkdirAll(d.ExportsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create exports directory: %w", err)
	}
	return nil
}

// EnsureBookExportDir creates the export directory for a book.
func (d *Dir) EnsureBookExportDir(title string) error {
	return os.MkdirAll(d.BookExportDir(title), 0o755)
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// Slug lowercases s and replaces every run of non-alphanumeric characters
// with a single dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	return out
}
