package api

import (
	"net/http"

	"langaccessor/api/router/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the API router. All registered paths are relative to the /api base
// path; mount it with http.StripPrefix or Mount.
func NewRouter(h *handlers.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	handlers.RegisterHealthRoutes(r)
	handlers.RegisterLanguageRoutes(r)
	h.RegisterCommandRoutes(r)
	h.RegisterSettingsRoutes(r)
	h.RegisterTabRoutes(r)
	h.RegisterRulesRoutes(r)

	r.NotFound(handlers.NotFoundHandler)
	r.MethodNotAllowed(handlers.MethodNotAllowedHandler)
	return r
}

// NewServerMux mounts the API router under /api.
func NewServerMux(h *handlers.Handler) http.Handler {
	root := chi.NewRouter()
	root.Mount("/api", NewRouter(h))
	root.NotFound(handlers.NotFoundHandler)
	return root
}
