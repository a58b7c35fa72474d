package config

import (
	"fmt"
	"net"
	"time"

	"github.com/jackzampolin/lectern/internal/pagecache"
	"github.com/jackzampolin/lectern/internal/render"
)

// Config is the root configuration structure.
type Config struct {
	Cache   CacheCfg   `mapstructure:"cache" yaml:"cache"`
	Render  RenderCfg  `mapstructure:"render" yaml:"render"`
	Volumes VolumesCfg `mapstructure:"volumes" yaml:"volumes"`
	Server  ServerCfg  `mapstructure:"server" yaml:"server"`
}

// CacheCfg tunes the render cache. Zero values fall back to built-in defaults.
type CacheCfg struct {
	Capacity       int `mapstructure:"capacity" yaml:"capacity"`
	StaleThreshold int `mapstructure:"stale_threshold" yaml:"stale_threshold"`
	Workers        int `mapstructure:"workers" yaml:"workers"`
	ExportCapacity int `mapstructure:"export_capacity" yaml:"export_capacity"`
}

// RenderCfg selects the render backend and the on-screen layout.
type RenderCfg struct {
	Backend       string `mapstructure:"backend" yaml:"backend"`
	Width         int    `mapstructure:"width" yaml:"width"`
	Height        int    `mapstructure:"height" yaml:"height"`
	PagesPerView  int    `mapstructure:"pages_per_view" yaml:"pages_per_view"`
	DPI           int    `mapstructure:"dpi" yaml:"dpi"`
	PopplerBinary string `mapstructure:"poppler_binary" yaml:"poppler_binary"`
}

// VolumesCfg controls how volume files are opened.
type VolumesCfg struct {
	OpenAttempts     int `mapstructure:"open_attempts" yaml:"open_attempts"`
	OpenRetryDelayMS int `mapstructure:"open_retry_delay_ms" yaml:"open_retry_delay_ms"`
}

// ServerCfg is where the viewer API listens.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheCfg{
			Capacity:       pagecache.DefaultCapacity,
			StaleThreshold: pagecache.DefaultStaleThreshold,
			Workers:        0, // one per CPU
			ExportCapacity: pagecache.ExportCapacity,
		},
		Render: RenderCfg{
			Backend:      render.BackendPDFCPU,
			Width:        1200,
			Height:       1600,
			PagesPerView: 2,
			DPI:          150,
		},
		Volumes: VolumesCfg{
			OpenAttempts:     3,
			OpenRetryDelayMS: 100,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8675",
		},
	}
}

// Validate rejects values that cannot be given a default meaning.
func (c *Config) Validate() error {
	if c.Cache.Capacity < 0 || c.Cache.StaleThreshold < 0 || c.Cache.Workers < 0 || c.Cache.ExportCapacity < 0 {
		return fmt.Errorf("cache settings must not be negative")
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		return fmt.Errorf("render size must not be negative, got %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.PagesPerView < 0 {
		return fmt.Errorf("render.pages_per_view must not be negative, got %d", c.Render.PagesPerView)
	}
	if _, err := render.NewRenderer(c.Render.Backend, render.BackendOptions{}); err != nil {
		return err
	}
	if c.Volumes.OpenAttempts < 0 {
		return fmt.Errorf("volumes.open_attempts must not be negative, got %d", c.Volumes.OpenAttempts)
	}
	return nil
}

// CacheConfig converts the cache and render sections for pagecache.New.
func (c *Config) CacheConfig() pagecache.Config {
	return pagecache.Config{
		Capacity:       c.Cache.Capacity,
		StaleThreshold: c.Cache.StaleThreshold,
		Workers:        c.Cache.Workers,
		Size:           c.ViewSize(),
	}
}

// ExportCacheConfig is CacheConfig with the larger export capacity.
func (c *Config) ExportCacheConfig() pagecache.Config {
	cfg := c.CacheConfig()
	cfg.Capacity = c.Cache.ExportCapacity
	if cfg.Capacity <= 0 {
		cfg.Capacity = pagecache.ExportCapacity
	}
	return cfg
}

// ViewSize is the per-page target size.
func (c *Config) ViewSize() render.Size {
	return render.Size{Width: c.Render.Width, Height: c.Render.Height}
}

// Renderer builds the configured render backend. ${ENV_VAR} references in
// the poppler binary path are expanded.
func (c *Config) Renderer() (render.Renderer, error) {
	return render.NewRenderer(c.Render.Backend, render.BackendOptions{
		DPI:           c.Render.DPI,
		PopplerBinary: ResolveEnvVars(c.Render.PopplerBinary),
	})
}

// OpenRetryDelay is the pause between volume open attempts.
func (c *Config) OpenRetryDelay() time.Duration {
	return time.Duration(c.Volumes.OpenRetryDelayMS) * time.Millisecond
}

// Addr is the listen address for the viewer API.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}
