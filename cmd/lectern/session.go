package main

import (
	"log/slog"

	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/session"
)

// sessionOptions builds session options for a manifest from config.
func sessionOptions(cfg *config.Config, manifestPath string, logger *slog.Logger) (session.Options, error) {
	renderer, err := cfg.Renderer()
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		ManifestPath:   manifestPath,
		Renderer:       renderer,
		Cache:          cfg.CacheConfig(),
		PagesPerView:   cfg.Render.PagesPerView,
		OpenAttempts:   cfg.Volumes.OpenAttempts,
		OpenRetryDelay: cfg.OpenRetryDelay(),
		Logger:         logger,
	}, nil
}
