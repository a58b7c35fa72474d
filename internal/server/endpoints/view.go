package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/session"
)

// ViewPage summarizes one page of a shown view. Images are fetched
// separately from /api/pages/{page}/image.
type ViewPage struct {
	Page        int    `json:"page" yaml:"page"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Width       int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height      int    `json:"height,omitempty" yaml:"height,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ViewResponse is the response for the view navigation endpoints.
type ViewResponse struct {
	Page  int        `json:"page" yaml:"page"`
	Pages []ViewPage `json:"pages" yaml:"pages"`
}

func viewResponse(v session.View) ViewResponse {
	resp := ViewResponse{Page: v.Page, Pages: make([]ViewPage, 0, len(v.Pages))}
	for _, p := range v.Pages {
		vp := ViewPage{Page: p.Page, Description: p.Description}
		if p.Err != nil {
			vp.Error = p.Err.Error()
		} else if p.Image != nil {
			b := p.Image.Bounds()
			vp.Width, vp.Height = b.Dx(), b.Dy()
		}
		resp.Pages = append(resp.Pages, vp)
	}
	return resp
}

// ViewStepEndpoint handles POST /api/view/next and POST /api/view/prev.
type ViewStepEndpoint struct {
	// Backward selects the previous view.
	Backward bool
}

var _ api.Endpoint = (*ViewStepEndpoint)(nil)

func (e *ViewStepEndpoint) path() string {
	if e.Backward {
		return "/api/view/prev"
	}
	return "/api/view/next"
}

func (e *ViewStepEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", e.path(), e.handler
}

func (e *ViewStepEndpoint) RequiresSession() bool { return true }

// handler godoc
//
//	@Summary		Step view
//	@Description	Shows the next or previous view and waits for its pages
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	ViewResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/api/view/next [post]
//	@Router			/api/view/prev [post]
func (e *ViewStepEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	step := sess.NextView
	if e.Backward {
		step = sess.PrevView
	}
	v, err := step(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse(v))
}

func (e *ViewStepEndpoint) Command(getServerURL func() string) *cobra.Command {
	use, short := "next", "Show the next view"
	if e.Backward {
		use, short = "prev", "Show the previous view"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ViewResponse
			if err := client.Post(cmd.Context(), e.path(), nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
