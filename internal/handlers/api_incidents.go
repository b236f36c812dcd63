package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/api"
	"github.com/debugops/debugops/internal/incidents"
	"github.com/debugops/debugops/internal/middleware"
	"github.com/debugops/debugops/internal/utils"
)

// incidentID reads and validates the {id} path value. It writes a 400 and
// returns false when the id is malformed.
func incidentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if err := utils.ValidateIncidentID(id); err != nil {
		api.RespondErrorWithCode(w, http.StatusBadRequest, "invalid_id", err.Error())
		return "", false
	}
	return id, true
}

// ========== Incidents ==========

// handleListIncidents handles GET /api/incidents
func (h *APIHandler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListIncidents(r.Context())
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}

	params := api.ParsePagination(r)
	items := api.IncidentsToListItems(api.Page(list, params))
	api.RespondJSON(w, http.StatusOK, api.NewPaginatedResponse(items, params, len(list)))
}

// handleCreateIncident handles POST /api/incidents
func (h *APIHandler) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var req api.CreateIncidentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	user := middleware.GetUserFromContext(r.Context())
	inc, err := h.incidents.Create(r.Context(), api.CreateRequestToNewIncident(req, user))
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}

	zap.S().Infof("Created incident via API: %s", inc.ID)
	api.RespondJSON(w, http.StatusCreated, inc)
}

// handleSimulateIncident handles POST /api/incidents/simulate
func (h *APIHandler) handleSimulateIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := h.incidents.Simulate(r.Context(), middleware.GetUserFromContext(r.Context()))
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, inc)
}

// handleGetIncident handles GET /api/incidents/{id}
func (h *APIHandler) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	inc, err := h.store.GetIncident(r.Context(), id)
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}

	patch, err := h.store.GetPatch(r.Context(), id)
	if err != nil && !errors.Is(err, incidents.ErrNotFound) {
		api.RespondIncidentError(w, err)
		return
	}

	events, err := h.store.ListEvents(r.Context(), id)
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}

	api.RespondJSON(w, http.StatusOK, api.IncidentToDetail(*inc, patch, len(events)))
}

// handleListEvents handles GET /api/incidents/{id}/events
func (h *APIHandler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	events, err := h.store.ListEvents(r.Context(), id)
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, events)
}

// handleGetPatch handles GET /api/incidents/{id}/patch
func (h *APIHandler) handleGetPatch(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	patch, err := h.store.GetPatch(r.Context(), id)
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, patch)
}

// handleIncidentReport handles GET /api/incidents/{id}/report
func (h *APIHandler) handleIncidentReport(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	report, err := h.reports.Render(r.Context(), id)
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `inline; filename="incident-`+id+`.md"`)
	api.RespondText(w, http.StatusOK, "text/markdown; charset=utf-8", report)
}

// ========== Workflow ==========

// handleAnalyzeIncident handles POST /api/incidents/{id}/analyze.
// By default the run continues in the background and 202 is returned; with
// wait=true the request blocks until the patch is proposed or the run fails.
func (h *APIHandler) handleAnalyzeIncident(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	var req api.AnalyzeRequest
	if err := api.DecodeOptionalJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := api.Validate(req); errs != nil {
		api.RespondValidationError(w, errs)
		return
	}

	timeout := h.settings.AnalysisTimeout()
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	if !req.Wait {
		if err := h.analysis.StartAnalysis(r.Context(), id, timeout); err != nil {
			api.RespondIncidentError(w, err)
			return
		}
		api.RespondJSON(w, http.StatusAccepted, api.AnalyzeAcceptedResponse{
			IncidentID: id,
			Status:     incidents.StatusAnalyzing,
			Message:    "Analysis started",
		})
		return
	}

	start := time.Now()
	patch, err := h.analysis.RunAnalysis(r.Context(), id, timeout)
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}
	zap.S().Infof("Analysis of incident %s finished in %s", id, utils.FormatDuration(time.Since(start)))
	api.RespondJSON(w, http.StatusOK, patch)
}

// handleApplyPatch handles POST /api/incidents/{id}/apply
func (h *APIHandler) handleApplyPatch(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	inc, err := h.analysis.ApplyPatch(r.Context(), id)
	if err != nil {
		api.RespondIncidentError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, inc)
}
