package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/render"
	"github.com/jackzampolin/lectern/internal/session"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"out of range", fmt.Errorf("page 40: %w", book.ErrAddressOutOfRange), http.StatusNotFound},
		{"empty book", session.ErrEmptyBook, http.StatusNotFound},
		{"superseded", session.ErrSuperseded, http.StatusConflict},
		{"render canceled", render.ErrCanceled, http.StatusConflict},
		{"session closed", session.ErrClosed, http.StatusServiceUnavailable},
		{"request gone", context.Canceled, http.StatusServiceUnavailable},
		{"render failure", &render.RenderError{Path: "a.pdf", Index: 1, Err: errors.New("bad scan")}, http.StatusInternalServerError},
		{"open failure", &render.OpenError{Path: "a.pdf", Err: render.ErrFormat}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestAll_RoutesAndCommandsUnique(t *testing.T) {
	routes := make(map[string]bool)
	commands := make(map[string]bool)
	for _, ep := range All() {
		method, path, handler := ep.Route()
		if handler == nil {
			t.Errorf("%s %s has no handler", method, path)
		}
		key := method + " " + path
		if routes[key] {
			t.Errorf("duplicate route %s", key)
		}
		routes[key] = true

		cmd := ep.Command(func() string { return "http://127.0.0.1:0" })
		if cmd == nil {
			continue
		}
		if commands[cmd.Name()] {
			t.Errorf("duplicate command %q", cmd.Name())
		}
		commands[cmd.Name()] = true
	}

	for _, want := range []string{
		"GET /health",
		"GET /api/book",
		"GET /api/pages/{page}",
		"GET /api/pages/{page}/image",
		"POST /api/pages/{page}/rotate",
		"POST /api/pages/{page}/favorite",
		"GET /api/favorites/next",
		"GET /api/cache",
		"DELETE /api/cache",
	} {
		if !routes[want] {
			t.Errorf("missing route %s", want)
		}
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if got, want := len(reg.Endpoints()), len(All()); got != want {
		t.Errorf("registered %d endpoints, want %d", got, want)
	}
	if err := reg.Register(&HealthEndpoint{}); err == nil {
		t.Error("registering GET /health twice succeeded")
	}
}
