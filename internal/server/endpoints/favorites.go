package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/markers"
)

// FavoritesResponse lists favorite pages in order.
type FavoritesResponse struct {
	Pages []int `json:"pages" yaml:"pages"`
}

// ListFavoritesEndpoint handles GET /api/favorites.
type ListFavoritesEndpoint struct{}

var _ api.Endpoint = (*ListFavoritesEndpoint)(nil)

func (e *ListFavoritesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/favorites", e.handler
}

func (e *ListFavoritesEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		List favorites
//	@Tags			favorites
//	@Produce		json
//	@Success		200	{object}	FavoritesResponse
//	@Router			/api/favorites [get]
func (e *ListFavoritesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	pages := sess.Favorites()
	if pages == nil {
		pages = []int{}
	}
	writeJSON(w, http.StatusOK, FavoritesResponse{Pages: pages})
}

func (e *ListFavoritesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List favorite pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp FavoritesResponse
			if err := client.Get(cmd.Context(), "/api/favorites", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// NextFavoriteResponse is the favorite found by GET /api/favorites/next.
type NextFavoriteResponse struct {
	From      int    `json:"from" yaml:"from"`
	Direction string `json:"direction" yaml:"direction"`
	Page      int    `json:"page" yaml:"page"`
}

// NextFavoriteEndpoint handles GET /api/favorites/next.
type NextFavoriteEndpoint struct{}

var _ api.Endpoint = (*NextFavoriteEndpoint)(nil)

func (e *NextFavoriteEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/favorites/next", e.handler
}

func (e *NextFavoriteEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Next favorite
//	@Description	Nearest favorite strictly after (or before) a page
//	@Tags			favorites
//	@Produce		json
//	@Param			from		query		int		false	"Start page (default: current page)"
//	@Param			direction	query		string	false	"forward or backward"
//	@Success		200			{object}	NextFavoriteResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Router			/api/favorites/next [get]
func (e *NextFavoriteEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	dir, ok := markers.ParseDirection(q.Get("direction"))
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("direction must be forward or backward, got %q", q.Get("direction")))
		return
	}
	from := sess.Current()
	if s := q.Get("from"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be an integer")
			return
		}
		from = n
	}

	page, found := sess.NextFavoriteFrom(from, dir)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no favorite %s of page %d", dir, from))
		return
	}
	writeJSON(w, http.StatusOK, NextFavoriteResponse{From: from, Direction: dir.String(), Page: page})
}

func (e *NextFavoriteEndpoint) Command(getServerURL func() string) *cobra.Command {
	var from string
	var backward bool
	cmd := &cobra.Command{
		Use:   "next-favorite",
		Short: "Find the nearest favorite from a page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if from != "" {
				q.Set("from", from)
			}
			q.Set("direction", markers.Forward.String())
			if backward {
				q.Set("direction", markers.Backward.String())
			}
			client := api.NewClient(getServerURL())
			var resp NextFavoriteResponse
			if err := client.Get(cmd.Context(), "/api/favorites/next?"+q.Encode(), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start page (default: current page)")
	cmd.Flags().BoolVarP(&backward, "backward", "b", false, "search backward")
	return cmd
}
