package handlers

import (
	"net/http"

	"langaccessor/models"

	"github.com/go-chi/chi/v5"
)

func RegisterLanguageRoutes(r chi.Router) {
	r.Get("/languages", ListLanguagesHandler)
}

// ListLanguagesHandler returns the supported language codes with their header values.
// @Summary List supported languages
// @Tags Languages
// @Produce json
// @Success 200 {object} models.CommandResponse{data=[]models.Language}
// @Router /languages [get]
func ListLanguagesHandler(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, models.OK(models.SupportedLanguages()))
}
