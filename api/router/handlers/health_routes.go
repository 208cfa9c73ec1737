package handlers

import (
	"net/http"

	"langaccessor/models"

	"github.com/go-chi/chi/v5"
)

func RegisterHealthRoutes(r chi.Router) {
	r.Get("/health", healthCheckHandler)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, models.OK(map[string]bool{"ok": true}))
}
