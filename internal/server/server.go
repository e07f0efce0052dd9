package server

import (
	"context"
	"net/http"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/offline"
	"github.com/desertthunder/hlsx/internal/tracker"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that serves a fixed set of path patterns.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Cache is the part of [offline.Manager] served over HTTP.
type Cache interface {
	Entries() ([]models.CacheEntry, error)
	Status(id models.ResourceID) (models.CacheEntry, error)
	Tracks(ctx context.Context, id models.ResourceID) ([]models.TrackOption, error)
	Download(ctx context.Context, id models.ResourceID, chooser offline.Chooser) (bool, error)
	Remove(id models.ResourceID) bool
	AddListener(l tracker.Listener)
	RemoveListener(l tracker.Listener)
}

var _ Cache = (*offline.Manager)(nil)
