package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/pagecache"
)

// CacheStatsEndpoint handles GET /api/cache.
type CacheStatsEndpoint struct{}

var _ api.Endpoint = (*CacheStatsEndpoint)(nil)

func (e *CacheStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/cache", e.handler
}

func (e *CacheStatsEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Cache stats
//	@Description	Entries, counters and render pool status
//	@Tags			cache
//	@Produce		json
//	@Success		200	{object}	pagecache.Stats
//	@Router			/api/cache [get]
func (e *CacheStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Cache().Stats())
}

func (e *CacheStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cache",
		Short: "Show render cache stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp pagecache.Stats
			if err := client.Get(cmd.Context(), "/api/cache", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ClearCacheEndpoint handles DELETE /api/cache.
type ClearCacheEndpoint struct{}

var _ api.Endpoint = (*ClearCacheEndpoint)(nil)

func (e *ClearCacheEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/cache", e.handler
}

func (e *ClearCacheEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Clear cache
//	@Description	Cancels pending renders and drops every cached page
//	@Tags			cache
//	@Success		204
//	@Router			/api/cache [delete]
func (e *ClearCacheEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	sess.Cache().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (e *ClearCacheEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Drop every cached page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return client.Delete(cmd.Context(), "/api/cache")
		},
	}
}
