package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/api"
	"github.com/debugops/debugops/internal/services"
)

// handleGetSettings handles GET /api/settings
func (h *APIHandler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, h.settings.Get())
}

// handleUpdateSettings handles PUT /api/settings.
// Only auto_analyze and the two intervals are writable; the provider and
// telemetry fields come from configuration.
func (h *APIHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req services.SettingsUpdate
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	updated := h.settings.Update(req)
	zap.S().Infof("Settings updated: auto_analyze=%t refresh=%ds timeout=%ds",
		updated.AutoAnalyze, updated.RefreshIntervalSeconds, updated.AnalysisTimeoutSeconds)
	api.RespondJSON(w, http.StatusOK, updated)
}
