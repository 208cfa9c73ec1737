package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"langaccessor/core"
	"langaccessor/database"
	"langaccessor/logger"
	"langaccessor/models"
)

// maxBodyBytes bounds request bodies; commands and settings are tiny.
const maxBodyBytes = 64 << 10

// RuleLister exposes the installed rule set.
type RuleLister interface {
	GetInstalled(ctx context.Context) ([]models.Rule, error)
}

// SyncTrigger queues a synchronization pass.
type SyncTrigger interface {
	Trigger(reason string) bool
}

// Handler carries the dependencies shared by every API route.
type Handler struct {
	Commands *core.CommandHandler
	Settings *database.Settings
	Rules    RuleLister
	Sync     SyncTrigger
}

func writeEnvelope(w http.ResponseWriter, status int, resp models.CommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("writeEnvelope: encoding response: %v", err)
	}
}

// writeResult maps a command response onto an HTTP status for the REST routes.
func writeResult(w http.ResponseWriter, resp models.CommandResponse) {
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	writeEnvelope(w, status, resp)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request payload: %w", err)
	}
	return nil
}

// NotFoundHandler answers unknown API paths with a failed envelope.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debug("API: unhandled route %s %s", r.Method, r.URL.Path)
	writeEnvelope(w, http.StatusNotFound, models.Fail(fmt.Sprintf("%s %s not found", r.Method, r.URL.Path)))
}

// MethodNotAllowedHandler answers known paths requested with the wrong method.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusMethodNotAllowed, models.Fail(fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path)))
}
