package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/render"
	"github.com/jackzampolin/lectern/internal/session"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		Health check
//	@Description	Returns ok while the HTTP server is responding
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

var _ api.Endpoint = (*ReadyEndpoint)(nil)

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresSession() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Returns ok once the book session is open
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if svcctx.SessionFrom(r.Context()) == nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Session: "not_initialized"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Session: "open"})
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (book session open)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/ready", &resp); err != nil {
				return err
			}
			fmt.Printf("Status:  %s\n", resp.Status)
			if resp.Session != "" {
				fmt.Printf("Session: %s\n", resp.Session)
			}
			return nil
		},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// errorStatus maps session and book errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, book.ErrAddressOutOfRange), errors.Is(err, session.ErrEmptyBook):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSuperseded), errors.Is(err, render.ErrCanceled):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed), errors.Is(err, book.ErrClosed),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err.Error())
}

// sessionFrom fetches the session or writes a 503.
func sessionFrom(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess := svcctx.SessionFrom(r.Context())
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "book session not open")
		return nil, false
	}
	return sess, true
}

// pathPage parses the {page} path value. Logical pages may be negative.
func pathPage(w http.ResponseWriter, r *http.Request) (int, bool) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return 0, false
	}
	return page, true
}

// pageArg parses a page from CLI args.
func pageArg(args []string) (int, error) {
	page, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("page must be an integer: %q", args[0])
	}
	return page, nil
}
