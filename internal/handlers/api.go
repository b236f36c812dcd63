package handlers

import (
	"net/http"

	"github.com/debugops/debugops/internal/incidents"
	"github.com/debugops/debugops/internal/services"
)

// APIHandler handles the incident and settings endpoints used by the dashboard
type APIHandler struct {
	store     incidents.Store
	incidents *services.IncidentService
	analysis  *services.AnalysisService
	reports   *services.ReportService
	settings  *services.SettingsService
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(store incidents.Store, incidentService *services.IncidentService, analysisService *services.AnalysisService, reportService *services.ReportService, settingsService *services.SettingsService) *APIHandler {
	return &APIHandler{
		store:     store,
		incidents: incidentService,
		analysis:  analysisService,
		reports:   reportService,
		settings:  settingsService,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Incidents
	mux.HandleFunc("GET /api/incidents", h.handleListIncidents)
	mux.HandleFunc("POST /api/incidents", h.handleCreateIncident)
	mux.HandleFunc("POST /api/incidents/simulate", h.handleSimulateIncident)
	mux.HandleFunc("GET /api/incidents/{id}", h.handleGetIncident)
	mux.HandleFunc("GET /api/incidents/{id}/events", h.handleListEvents)
	mux.HandleFunc("GET /api/incidents/{id}/patch", h.handleGetPatch)
	mux.HandleFunc("GET /api/incidents/{id}/report", h.handleIncidentReport)

	// Workflow
	mux.HandleFunc("POST /api/incidents/{id}/analyze", h.handleAnalyzeIncident)
	mux.HandleFunc("POST /api/incidents/{id}/apply", h.handleApplyPatch)

	// Runtime settings
	mux.HandleFunc("GET /api/settings", h.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.handleUpdateSettings)
}
