package main

import (
	"github.com/jackzampolin/lectern/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	registry, err := endpoints.NewRegistry()
	if err != nil {
		panic(err)
	}
	apiCmd := registry.BuildCommands(getServerURL)

	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8675", "Server URL",
	)

	rootCmd.AddCommand(apiCmd)
}
