package handlers

import (
	"net/http"

	"langaccessor/logger"
	"langaccessor/models"
)

// CommandHandler executes a command envelope.
// @Summary Execute a command
// @Description Runs getSettings, saveSetting, removeSetting, clearAllSettings, setExtensionStatus or getActiveTab. The outcome is reported in the envelope; the HTTP status is 200 whenever the body could be decoded.
// @Tags Commands
// @Accept json
// @Produce json
// @Param command body models.Command true "Command"
// @Success 200 {object} models.CommandResponse
// @Failure 400 {object} models.CommandResponse "Malformed body"
// @Router /command [post]
func (h *Handler) CommandHandler(w http.ResponseWriter, r *http.Request) {
	var cmd models.Command
	if err := decodeBody(r, &cmd); err != nil {
		logger.Error("CommandHandler: %v", err)
		writeEnvelope(w, http.StatusBadRequest, models.Fail(err.Error()))
		return
	}
	writeEnvelope(w, http.StatusOK, h.Commands.Handle(r.Context(), cmd))
}
