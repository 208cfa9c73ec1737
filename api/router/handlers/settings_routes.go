package handlers

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterSettingsRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.GetSettingsHandler)
		r.Delete("/", h.ClearSettingsHandler)
		r.Put("/{domain}", h.SaveSettingHandler)
		r.Delete("/{domain}", h.RemoveSettingHandler)
	})

	r.Route("/status", func(r chi.Router) {
		r.Get("/", h.GetStatusHandler)
		r.Put("/", h.SetStatusHandler)
	})
}
