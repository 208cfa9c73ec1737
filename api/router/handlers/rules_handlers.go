package handlers

import (
	"net/http"

	"langaccessor/logger"
	"langaccessor/models"
)

// SyncView is the data payload of a sync request.
type SyncView struct {
	Queued bool `json:"queued"`
}

// ListRulesHandler returns the installed header rules ordered by id.
// @Summary List installed rules
// @Tags Rules
// @Produce json
// @Success 200 {object} models.CommandResponse{data=[]models.Rule}
// @Failure 500 {object} models.CommandResponse
// @Router /rules [get]
func (h *Handler) ListRulesHandler(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.GetInstalled(r.Context())
	if err != nil {
		logger.Error("ListRulesHandler: %v", err)
		writeEnvelope(w, http.StatusInternalServerError, models.Fail("Failed to read installed rules"))
		return
	}
	writeEnvelope(w, http.StatusOK, models.OK(rules))
}

// SyncRulesHandler queues a synchronization pass. queued is false when the request was
// merged into a pass that was already waiting.
// @Summary Trigger a synchronization pass
// @Tags Rules
// @Produce json
// @Success 202 {object} models.CommandResponse{data=SyncView}
// @Router /rules/sync [post]
func (h *Handler) SyncRulesHandler(w http.ResponseWriter, r *http.Request) {
	queued := h.Sync.Trigger("api request")
	writeEnvelope(w, http.StatusAccepted, models.OK(SyncView{Queued: queued}))
}
