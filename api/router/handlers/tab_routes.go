package handlers

import (
	"net/http"

	"langaccessor/models"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterTabRoutes(r chi.Router) {
	r.Get("/active-tab", h.ActiveTabHandler)
}

// ActiveTabHandler returns the page most recently navigated through the proxy, or null.
// @Summary Get the active tab
// @Tags Tabs
// @Produce json
// @Success 200 {object} models.CommandResponse{data=models.Tab}
// @Router /active-tab [get]
func (h *Handler) ActiveTabHandler(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.Commands.Handle(r.Context(), models.Command{Action: models.ActionGetActiveTab}))
}
