package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/server/endpoints"
	"github.com/jackzampolin/lectern/internal/session"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// Server is the Lectern viewer HTTP server.
// It owns one book session: opened on Start and closed on shutdown.
type Server struct {
	httpServer  *http.Server
	sessionOpts session.Options
	configMgr   *config.Manager
	home        *home.Dir
	logger      *slog.Logger

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu         sync.RWMutex
	running    bool
	session    *session.Session
	services   *svcctx.Services
	listenAddr string
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8675). "0" picks a free port.
	Port string
	// Session describes the book to open on Start.
	Session session.Options
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the lectern home directory
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8675"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Session.ManifestPath == "" && cfg.Session.Manifest == nil {
		return nil, session.ErrNoManifest
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = cfg.Logger
	}

	s := &Server{
		sessionOpts: cfg.Session,
		configMgr:   cfg.ConfigManager,
		home:        cfg.Home,
		logger:      cfg.Logger,
	}
	s.services = s.newServices(nil)

	reg, err := endpoints.NewRegistry()
	if err != nil {
		return nil, err
	}
	s.endpointRegistry = reg

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) newServices(sess *session.Session) *svcctx.Services {
	return &svcctx.Services{
		Session:       sess,
		ConfigManager: s.configMgr,
		Logger:        s.logger,
		Home:          s.home,
	}
}

// Start opens the book session and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.openSession(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listenAddr = ln.Addr().String()
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// openSession opens the book and publishes it to handlers. Config changes
// are applied to the open session live.
func (s *Server) openSession(ctx context.Context) error {
	s.logger.Info("opening book session")
	sess, err := session.Open(ctx, s.sessionOpts)
	if err != nil {
		return fmt.Errorf("failed to open book: %w", err)
	}

	s.mu.Lock()
	s.session = sess
	s.services = s.newServices(sess)
	s.mu.Unlock()

	st := sess.Stats()
	s.logger.Info("book session open",
		"title", st.Title,
		"pages", fmt.Sprintf("%d..%d", st.FirstPage, st.LastPage),
		"pages_per_view", st.PagesPerView)

	if s.configMgr != nil {
		s.configMgr.OnChange(func(c *config.Config) {
			if s.Session() != sess {
				return
			}
			s.applyConfig(sess, c)
		})
	}
	return nil
}

// applyConfig pushes cache and layout settings into a running session.
func (s *Server) applyConfig(sess *session.Session, c *config.Config) {
	sess.Reconfigure(c.CacheConfig())
	sess.SetViewSize(c.ViewSize())
	if c.Render.PagesPerView > 0 {
		if err := sess.SetPagesPerView(c.Render.PagesPerView); err != nil {
			s.logger.Warn("ignoring pages_per_view", "error", err)
		}
	}
	s.logger.Info("session reconfigured from config",
		"capacity", c.Cache.Capacity,
		"stale_threshold", c.Cache.StaleThreshold,
		"size", c.ViewSize().String())
}

// shutdown stops the HTTP server and closes the session.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.services = s.newServices(nil)
	s.listenAddr = ""
	s.mu.Unlock()

	if sess != nil {
		if err := sess.Close(); err != nil {
			s.logger.Error("session close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Session returns the open session.
// Returns nil if the server hasn't started yet.
func (s *Server) Session() *session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Addr returns the server's configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAddr returns the bound address while serving, or "".
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenAddr
}

// Endpoints returns the endpoint registry, used to build the api CLI.
func (s *Server) Endpoints() *api.Registry {
	return s.endpointRegistry
}
