package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/markers"
	"github.com/jackzampolin/lectern/internal/session"
)

// BookResponse describes the open book.
type BookResponse struct {
	ID           string             `json:"id" yaml:"id"`
	Title        string             `json:"title" yaml:"title"`
	Offset       int                `json:"page_number_offset" yaml:"page_number_offset"`
	FirstPage    int                `json:"first_page" yaml:"first_page"`
	LastPage     int                `json:"last_page" yaml:"last_page"`
	PageCount    int                `json:"page_count" yaml:"page_count"`
	Current      int                `json:"current" yaml:"current"`
	PagesPerView int                `json:"pages_per_view" yaml:"pages_per_view"`
	Dirty        bool               `json:"dirty" yaml:"dirty"`
	Volumes      []book.VolumeInfo  `json:"volumes" yaml:"volumes"`
	TOC          []markers.TOCEntry `json:"toc,omitempty" yaml:"toc,omitempty"`
}

func bookResponse(sess *session.Session) BookResponse {
	b := sess.Book()
	st := sess.Stats()
	return BookResponse{
		ID:           st.ID,
		Title:        st.Title,
		Offset:       b.Offset(),
		FirstPage:    st.FirstPage,
		LastPage:     st.LastPage,
		PageCount:    b.PageCount(),
		Current:      st.Current,
		PagesPerView: st.PagesPerView,
		Dirty:        st.Dirty,
		Volumes:      b.Volumes(),
		TOC:          sess.TOC(),
	}
}

// GetBookEndpoint handles GET /api/book.
type GetBookEndpoint struct{}

var _ api.Endpoint = (*GetBookEndpoint)(nil)

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/book", e.handler
}

func (e *GetBookEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Get book
//	@Description	Title, page range and volumes of the open book
//	@Tags			book
//	@Produce		json
//	@Success		200	{object}	BookResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/book [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, bookResponse(sess))
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book",
		Short: "Show the open book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BookResponse
			if err := client.Get(cmd.Context(), "/api/book", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SetOffsetRequest is the body for POST /api/book/offset.
type SetOffsetRequest struct {
	Offset *int `json:"page_number_offset"`
}

// SetOffsetEndpoint handles POST /api/book/offset.
type SetOffsetEndpoint struct{}

var _ api.Endpoint = (*SetOffsetEndpoint)(nil)

func (e *SetOffsetEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/book/offset", e.handler
}

func (e *SetOffsetEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Set page number offset
//	@Description	Renumbers the book; the current view stays on the same physical page
//	@Tags			book
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SetOffsetRequest	true	"New offset"
//	@Success		200		{object}	BookResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/book/offset [post]
func (e *SetOffsetEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var req SetOffsetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Offset == nil {
		writeError(w, http.StatusBadRequest, "page_number_offset is required")
		return
	}
	sess.SetOffset(*req.Offset)
	writeJSON(w, http.StatusOK, bookResponse(sess))
}

func (e *SetOffsetEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "offset <n>",
		Short: "Set the logical number of the first page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("offset must be an integer: %q", args[0])
			}
			client := api.NewClient(getServerURL())
			var resp BookResponse
			if err := client.Post(cmd.Context(), "/api/book/offset", SetOffsetRequest{Offset: &n}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SaveResponse is the response for POST /api/book/save.
type SaveResponse struct {
	Saved bool `json:"saved" yaml:"saved"`
}

// SaveBookEndpoint handles POST /api/book/save.
type SaveBookEndpoint struct{}

var _ api.Endpoint = (*SaveBookEndpoint)(nil)

func (e *SaveBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/book/save", e.handler
}

func (e *SaveBookEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Save book
//	@Description	Writes offset, rotations and favorites back to the manifest
//	@Tags			book
//	@Produce		json
//	@Success		200	{object}	SaveResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/book/save [post]
func (e *SaveBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if err := sess.Save(); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Saved: true})
}

func (e *SaveBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save rotations, offset and favorites to the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SaveResponse
			if err := client.Post(cmd.Context(), "/api/book/save", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
