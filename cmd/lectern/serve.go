package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve <manifest>",
	Short: "Serve a book over the viewer API",
	Long: `Open a book manifest and start the Lectern HTTP viewer API.

The book session is opened before the listener starts, and closed when the
server shuts down (via Ctrl+C or SIGTERM). Edits to the config file are
applied live: cache capacity, stale threshold, view size and pages per view.

The server provides:
  - /health                     - Basic server health check
  - /ready                      - Readiness check (book session open)
  - /api/book                   - Title, page range and volumes
  - /api/pages/{page}[/image]   - Page resolution and rendered PNG
  - /api/favorites, /api/cache  - Markers and cache control

Examples:
  lectern serve book.yaml                    # Start on the configured port
  lectern serve book.yaml --port 3000        # Start on custom port
  lectern serve book.yaml --host 0.0.0.0     # Bind to all interfaces`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		h, mgr, err := loadConfig()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if mgr.File() != "" {
			mgr.WatchConfig()
			logger.Info("watching config", "file", mgr.File())
		}

		cfg := mgr.Get()
		opts, err := sessionOptions(cfg, args[0], logger)
		if err != nil {
			return err
		}

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Session:       opts,
			ConfigManager: mgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "8675", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
