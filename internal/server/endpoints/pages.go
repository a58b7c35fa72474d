package endpoints

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"strconv"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/render"
	"github.com/jackzampolin/lectern/internal/session"
)

// GetPageEndpoint handles GET /api/pages/{page}.
type GetPageEndpoint struct{}

var _ api.Endpoint = (*GetPageEndpoint)(nil)

func (e *GetPageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pages/{page}", e.handler
}

func (e *GetPageEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Resolve page
//	@Description	Volume, index, rotation and markers of a logical page
//	@Tags			pages
//	@Produce		json
//	@Param			page	path		int	true	"Logical page number"
//	@Success		200		{object}	session.PageInfo
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/pages/{page} [get]
func (e *GetPageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page, ok := pathPage(w, r)
	if !ok {
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	info, err := sess.Page(page)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (e *GetPageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "page <page>",
		Short: "Resolve a logical page to its volume and index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := pageArg(args)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp session.PageInfo
			if err := client.Get(cmd.Context(), fmt.Sprintf("/api/pages/%d", page), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// PageImageEndpoint handles GET /api/pages/{page}/image.
type PageImageEndpoint struct{}

var _ api.Endpoint = (*PageImageEndpoint)(nil)

func (e *PageImageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pages/{page}/image", e.handler
}

func (e *PageImageEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Get page image
//	@Description	Shows the page (prefetching around it) and returns the rendered PNG
//	@Tags			pages
//	@Produce		image/png
//	@Param			page	path		int	true	"Logical page number"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/pages/{page}/image [get]
func (e *PageImageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page, ok := pathPage(w, r)
	if !ok {
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	// Show clamps, the API does not.
	if _, err := sess.Book().Resolve(page); err != nil {
		writeSessionError(w, err)
		return
	}

	view, err := sess.Show(r.Context(), page)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	var shown *session.PageImage
	for i := range view.Pages {
		if view.Pages[i].Page == page {
			shown = &view.Pages[i]
			break
		}
	}
	if shown == nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("page %d missing from view at %d", page, view.Page))
		return
	}
	if shown.Err != nil {
		writeSessionError(w, shown.Err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, shown.Image); err != nil {
		writeError(w, http.StatusInternalServerError, "encode png: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Lectern-Page", strconv.Itoa(page))
	w.Header().Set("X-Lectern-View", strconv.Itoa(view.Page))
	if shown.Description != "" {
		w.Header().Set("X-Lectern-Description", shown.Description)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (e *PageImageEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "image <page>",
		Short: "Render a page and write it as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := pageArg(args)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("page_%d.png", page)
			}
			client := api.NewClient(getServerURL())
			data, _, err := client.GetBytes(cmd.Context(), fmt.Sprintf("/api/pages/%d/image", page))
			if err != nil {
				return err
			}
			if err := atomic.WriteFile(out, bytes.NewReader(data)); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Printf("Wrote page %d to %s (%d bytes)\n", page, out, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "", "output file (default page_<n>.png)")
	return cmd
}

// RotateResponse is the response for POST /api/pages/{page}/rotate.
type RotateResponse struct {
	Page     int             `json:"page" yaml:"page"`
	Volume   int             `json:"volume" yaml:"volume"`
	Rotation render.Rotation `json:"rotation" yaml:"rotation"`
}

// RotatePageEndpoint handles POST /api/pages/{page}/rotate.
type RotatePageEndpoint struct{}

var _ api.Endpoint = (*RotatePageEndpoint)(nil)

func (e *RotatePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/{page}/rotate", e.handler
}

func (e *RotatePageEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Rotate volume
//	@Description	Turns the volume containing the page by 90 degrees clockwise
//	@Tags			pages
//	@Produce		json
//	@Param			page	path		int	true	"Logical page number"
//	@Success		200		{object}	RotateResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/pages/{page}/rotate [post]
func (e *RotatePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page, ok := pathPage(w, r)
	if !ok {
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	rotation, err := sess.Rotate(page)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	loc, err := sess.Book().Resolve(page)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RotateResponse{Page: page, Volume: loc.Volume, Rotation: rotation})
}

func (e *RotatePageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <page>",
		Short: "Rotate the volume containing a page by 90 degrees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := pageArg(args)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp RotateResponse
			if err := client.Post(cmd.Context(), fmt.Sprintf("/api/pages/%d/rotate", page), nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// FavoriteResponse is the response for POST /api/pages/{page}/favorite.
type FavoriteResponse struct {
	Page     int  `json:"page" yaml:"page"`
	Favorite bool `json:"favorite" yaml:"favorite"`
}

// FavoritePageEndpoint handles POST /api/pages/{page}/favorite.
type FavoritePageEndpoint struct{}

var _ api.Endpoint = (*FavoritePageEndpoint)(nil)

func (e *FavoritePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/{page}/favorite", e.handler
}

func (e *FavoritePageEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Toggle favorite
//	@Description	Flips the favorite mark on a page
//	@Tags			favorites
//	@Produce		json
//	@Param			page	path		int	true	"Logical page number"
//	@Success		200		{object}	FavoriteResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/pages/{page}/favorite [post]
func (e *FavoritePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page, ok := pathPage(w, r)
	if !ok {
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	on, err := sess.ToggleFavorite(page)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FavoriteResponse{Page: page, Favorite: on})
}

func (e *FavoritePageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <page>",
		Short: "Toggle the favorite mark on a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := pageArg(args)
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			var resp FavoriteResponse
			if err := client.Post(cmd.Context(), fmt.Sprintf("/api/pages/%d/favorite", page), nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
