package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Endpoint pairs a viewer HTTP route with the `lectern api` subcommand that
// calls it.
type Endpoint interface {
	// Route returns the method, the ServeMux pattern and the handler.
	Route() (method, pattern string, handler http.HandlerFunc)

	// RequiresSession reports whether the handler needs an open book.
	// Such routes answer 503 while no session is open.
	RequiresSession() bool

	// Command builds the CLI command, or nil for routes with none.
	// serverURL is read when the command runs so --server is honoured.
	Command(serverURL func() string) *cobra.Command
}
