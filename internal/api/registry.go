package api

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// Registry collects endpoints for the HTTP mux and the api command tree.
type Registry struct {
	endpoints []Endpoint
	routes    map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string]bool)}
}

// Register adds an endpoint. A method and pattern may only be registered once.
func (r *Registry) Register(ep Endpoint) error {
	method, pattern, _ := ep.Route()
	key := method + " " + pattern
	if r.routes[key] {
		return fmt.Errorf("duplicate route %s", key)
	}
	r.routes[key] = true
	r.endpoints = append(r.endpoints, ep)
	return nil
}

// RegisterRoutes installs every route on mux, wrapping the ones that need
// an open session with requireSession.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, requireSession func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, pattern, handler := ep.Route()
		if ep.RequiresSession() {
			handler = requireSession(handler)
		}
		mux.HandleFunc(method+" "+pattern, handler)
	}
}

// BuildCommands returns the `api` command with one subcommand per endpoint.
func (r *Registry) BuildCommands(serverURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running Lectern server via HTTP.

These commands require a running server (lectern serve).
Use --server to specify a custom server URL.

Examples:
  lectern api health                 # Check server health
  lectern api book                   # Show the open book
  lectern api page -- -2             # Resolve logical page -2
  lectern api image 12 -f p.png      # Render page 12 to a file`,
	}

	for _, ep := range r.endpoints {
		if cmd := ep.Command(serverURL); cmd != nil {
			apiCmd.AddCommand(cmd)
		}
	}
	return apiCmd
}

// Endpoints returns the registered endpoints in registration order.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
