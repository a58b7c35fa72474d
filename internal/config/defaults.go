package config

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is one documented configuration key.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every known key with its default value. The Manager
// registers them with viper so env overrides work for keys absent from the
// config file.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// Cache
		{
			Key:         "cache.capacity",
			Value:       d.Cache.Capacity,
			Description: "Maximum number of page renders kept in the interactive cache",
		},
		{
			Key:         "cache.stale_threshold",
			Value:       d.Cache.StaleThreshold,
			Description: "Incomplete renders older than this many requests are cancelled",
		},
		{
			Key:         "cache.workers",
			Value:       d.Cache.Workers,
			Description: "Concurrent render workers (0 means one per CPU)",
		},
		{
			Key:         "cache.export_capacity",
			Value:       d.Cache.ExportCapacity,
			Description: "Cache capacity used by bulk export",
		},

		// Render
		{
			Key:         "render.backend",
			Value:       d.Render.Backend,
			Description: "Render backend: pdfcpu (embedded scans) or poppler (pdftoppm)",
		},
		{
			Key:         "render.width",
			Value:       d.Render.Width,
			Description: "Target page width in pixels (0 means unconstrained)",
		},
		{
			Key:         "render.height",
			Value:       d.Render.Height,
			Description: "Target page height in pixels (0 means unconstrained)",
		},
		{
			Key:         "render.pages_per_view",
			Value:       d.Render.PagesPerView,
			Description: "Pages shown side by side",
		},
		{
			Key:         "render.dpi",
			Value:       d.Render.DPI,
			Description: "Rasterization DPI for the poppler backend",
		},
		{
			Key:         "render.poppler_binary",
			Value:       d.Render.PopplerBinary,
			Description: "Path to pdftoppm; empty searches PATH",
		},

		// Volumes
		{
			Key:         "volumes.open_attempts",
			Value:       d.Volumes.OpenAttempts,
			Description: "Attempts made to open a volume before giving up",
		},
		{
			Key:         "volumes.open_retry_delay_ms",
			Value:       d.Volumes.OpenRetryDelayMS,
			Description: "Delay between volume open attempts in milliseconds",
		},

		// Server
		{
			Key:         "server.host",
			Value:       d.Server.Host,
			Description: "Viewer API listen host",
		},
		{
			Key:         "server.port",
			Value:       d.Server.Port,
			Description: "Viewer API listen port",
		},
	}
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// LookupDefault is GetDefault with an error for unknown or malformed keys.
func LookupDefault(key string) (Entry, error) {
	if err := ValidateKey(key); err != nil {
		return Entry{}, err
	}
	def := GetDefault(key)
	if def == nil {
		return Entry{}, fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return *def, nil
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
