package handlers

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterRulesRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.ListRulesHandler)
		r.Post("/sync", h.SyncRulesHandler)
	})
}
