package endpoints

import (
	"github.com/jackzampolin/lectern/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},

		// Book endpoints
		&GetBookEndpoint{},
		&SetOffsetEndpoint{},
		&SaveBookEndpoint{},

		// Page endpoints
		&GetPageEndpoint{},
		&PageImageEndpoint{},
		&RotatePageEndpoint{},
		&FavoritePageEndpoint{},

		// View navigation
		&ViewStepEndpoint{},
		&ViewStepEndpoint{Backward: true},

		// Favorites
		&ListFavoritesEndpoint{},
		&NextFavoriteEndpoint{},

		// Cache
		&CacheStatsEndpoint{},
		&ClearCacheEndpoint{},
	}
}

// NewRegistry returns a registry holding every endpoint from All.
func NewRegistry() (*api.Registry, error) {
	reg := api.NewRegistry()
	for _, ep := range All() {
		if err := reg.Register(ep); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
