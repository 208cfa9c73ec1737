package handlers

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterCommandRoutes(r chi.Router) {
	r.Post("/command", h.CommandHandler)
}
