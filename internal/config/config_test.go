package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/lectern/internal/pagecache"
	"github.com/jackzampolin/lectern/internal/render"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestNewManager(t *testing.T) {
	configFile := writeConfig(t, `
cache:
  capacity: 80
render:
  pages_per_view: 1
`)

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := mgr.Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Cache.Capacity != 80 {
		t.Errorf("Cache.Capacity = %d, want 80", cfg.Cache.Capacity)
	}
	if cfg.Render.PagesPerView != 1 {
		t.Errorf("Render.PagesPerView = %d, want 1", cfg.Render.PagesPerView)
	}
	// Keys missing from the file keep their defaults.
	if cfg.Cache.StaleThreshold != pagecache.DefaultStaleThreshold {
		t.Errorf("Cache.StaleThreshold = %d, want %d", cfg.Cache.StaleThreshold, pagecache.DefaultStaleThreshold)
	}
	if cfg.Render.Backend != render.BackendPDFCPU {
		t.Errorf("Render.Backend = %q, want %q", cfg.Render.Backend, render.BackendPDFCPU)
	}
	if mgr.File() != configFile {
		t.Errorf("File() = %q, want %q", mgr.File(), configFile)
	}
}

func TestNewManager_EnvOverride(t *testing.T) {
	configFile := writeConfig(t, "cache:\n  capacity: 80\n")
	t.Setenv("LECTERN_CACHE_CAPACITY", "12")
	t.Setenv("LECTERN_SERVER_PORT", "9000")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	cfg := mgr.Get()
	if cfg.Cache.Capacity != 12 {
		t.Errorf("Cache.Capacity = %d, want 12 from env", cfg.Cache.Capacity)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %q, want 9000 from env", cfg.Server.Port)
	}
}

func TestNewManager_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad backend", "render:\n  backend: ghostscript\n", "unknown render backend"},
		{"negative width", "render:\n  width: -1\n", "must not be negative"},
		{"negative capacity", "cache:\n  capacity: -5\n", "must not be negative"},
		{"malformed yaml", "cache: [\n", "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("NewManager() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Capacity = 7
	cfg.Cache.Workers = 3
	cfg.Render.Width = 300
	cfg.Render.Height = 400

	cc := cfg.CacheConfig()
	if cc.Capacity != 7 || cc.Workers != 3 || cc.StaleThreshold != pagecache.DefaultStaleThreshold {
		t.Errorf("CacheConfig() = %+v", cc)
	}
	if cc.Size != (render.Size{Width: 300, Height: 400}) {
		t.Errorf("CacheConfig().Size = %v, want 300x400", cc.Size)
	}

	cfg.Cache.ExportCapacity = 0
	if got := cfg.ExportCacheConfig().Capacity; got != pagecache.ExportCapacity {
		t.Errorf("ExportCacheConfig().Capacity = %d, want %d", got, pagecache.ExportCapacity)
	}

	if got := cfg.OpenRetryDelay(); got != 100*time.Millisecond {
		t.Errorf("OpenRetryDelay() = %v, want 100ms", got)
	}
	if got := cfg.Addr(); got != "127.0.0.1:8675" {
		t.Errorf("Addr() = %q", got)
	}

	t.Run("renderer", func(t *testing.T) {
		t.Setenv("LECTERN_TEST_PDFTOPPM", "/opt/bin/pdftoppm")
		cfg.Render.Backend = render.BackendPoppler
		cfg.Render.PopplerBinary = "${LECTERN_TEST_PDFTOPPM}"
		r, err := cfg.Renderer()
		if err != nil {
			t.Fatalf("Renderer() error = %v", err)
		}
		p, ok := r.(render.PopplerRenderer)
		if !ok {
			t.Fatalf("Renderer() = %T, want render.PopplerRenderer", r)
		}
		if p.Binary != "/opt/bin/pdftoppm" || p.DPI != 150 {
			t.Errorf("PopplerRenderer = %+v", p)
		}
	})
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("LECTERN_TEST_VAR", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"${LECTERN_TEST_VAR}", "value"},
		{"/prefix/${LECTERN_TEST_VAR}/suffix", "/prefix/value/suffix"},
		{"${LECTERN_TEST_UNSET_VAR}", ""},
	}
	for _, tt := range tests {
		if got := ResolveEnvVars(tt.in); got != tt.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Lectern configuration") {
		t.Errorf("written config missing header:\n%s", data)
	}

	// The written file must load back to the defaults.
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager() on default file error = %v", err)
	}
	if got, want := *mgr.Get(), *DefaultConfig(); got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "cache:\n  capacity: 10\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "cache:\n  capacity: 10\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = mgr.Get().Cache.Capacity
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "cache:\n  capacity: 10\n")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if got := mgr.Get().Cache.Capacity; got != 10 {
		t.Fatalf("initial capacity = %d, want 10", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Int64
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int64(cfg.Cache.Capacity))
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("cache:\n  capacity: 25\n"), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lastValue.Load() == 25 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Cache.Capacity; got != 25 {
		t.Errorf("config not updated: capacity = %d, want 25", got)
	}
	if v := lastValue.Load(); v != 25 {
		t.Errorf("callback received capacity %d, want 25", v)
	}
}
