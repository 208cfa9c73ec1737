package handlers

import (
	"net/http"

	"langaccessor/logger"
	"langaccessor/models"

	"github.com/go-chi/chi/v5"
)

type saveSettingPayload struct {
	Language string `json:"language"`
}

type statusPayload struct {
	Enabled *bool `json:"enabled"`
}

// StatusView is the data payload of the status routes.
type StatusView struct {
	Enabled bool `json:"enabled"`
}

// GetSettingsHandler returns every domain setting and the enabled flag.
// @Summary List domain settings
// @Tags Settings
// @Produce json
// @Success 200 {object} models.CommandResponse{data=models.SettingsView}
// @Router /settings [get]
func (h *Handler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.Commands.Handle(r.Context(), models.Command{Action: models.ActionGetSettings}))
}

// SaveSettingHandler assigns a language to the domain in the path.
// @Summary Save a domain setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param domain path string true "Domain"
// @Param setting body saveSettingPayload true "Language code"
// @Success 200 {object} models.CommandResponse{data=models.DomainSettingView}
// @Failure 400 {object} models.CommandResponse
// @Router /settings/{domain} [put]
func (h *Handler) SaveSettingHandler(w http.ResponseWriter, r *http.Request) {
	var payload saveSettingPayload
	if err := decodeBody(r, &payload); err != nil {
		logger.Error("SaveSettingHandler: %v", err)
		writeEnvelope(w, http.StatusBadRequest, models.Fail(err.Error()))
		return
	}
	writeResult(w, h.Commands.Handle(r.Context(), models.Command{
		Action:   models.ActionSaveSetting,
		Domain:   chi.URLParam(r, "domain"),
		Language: payload.Language,
	}))
}

// RemoveSettingHandler deletes the setting of the domain in the path. Removing an
// unknown domain succeeds.
// @Summary Remove a domain setting
// @Tags Settings
// @Produce json
// @Param domain path string true "Domain"
// @Success 200 {object} models.CommandResponse
// @Failure 400 {object} models.CommandResponse
// @Router /settings/{domain} [delete]
func (h *Handler) RemoveSettingHandler(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.Commands.Handle(r.Context(), models.Command{
		Action: models.ActionRemoveSetting,
		Domain: chi.URLParam(r, "domain"),
	}))
}

// ClearSettingsHandler deletes every domain setting.
// @Summary Clear all domain settings
// @Tags Settings
// @Produce json
// @Success 200 {object} models.CommandResponse
// @Router /settings [delete]
func (h *Handler) ClearSettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.Commands.Handle(r.Context(), models.Command{Action: models.ActionClearAllSettings}))
}

// GetStatusHandler reports whether rewriting is enabled.
// @Summary Get the enabled flag
// @Tags Settings
// @Produce json
// @Success 200 {object} models.CommandResponse{data=StatusView}
// @Failure 500 {object} models.CommandResponse
// @Router /status [get]
func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.Settings.Enabled(r.Context())
	if err != nil {
		logger.Error("GetStatusHandler: %v", err)
		writeEnvelope(w, http.StatusInternalServerError, models.Fail("Failed to read extension status"))
		return
	}
	writeEnvelope(w, http.StatusOK, models.OK(StatusView{Enabled: enabled}))
}

// SetStatusHandler turns rewriting on or off.
// @Summary Set the enabled flag
// @Tags Settings
// @Accept json
// @Produce json
// @Param status body statusPayload true "Enabled flag"
// @Success 200 {object} models.CommandResponse{data=StatusView}
// @Failure 400 {object} models.CommandResponse
// @Router /status [put]
func (h *Handler) SetStatusHandler(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := decodeBody(r, &payload); err != nil {
		logger.Error("SetStatusHandler: %v", err)
		writeEnvelope(w, http.StatusBadRequest, models.Fail(err.Error()))
		return
	}
	resp := h.Commands.Handle(r.Context(), models.Command{Action: models.ActionSetExtensionStatus, Enabled: payload.Enabled})
	if resp.Success {
		resp.Data = StatusView{Enabled: *payload.Enabled}
	}
	writeResult(w, resp)
}
