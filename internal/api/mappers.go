package api

import (
	"github.com/debugops/debugops/internal/incidents"
	"github.com/debugops/debugops/internal/utils"
)

const detailPreviewLines = 3

// IncidentToListItem converts an incident to a compact list representation.
func IncidentToListItem(i incidents.Incident) IncidentListItem {
	return IncidentListItem{
		ID:            i.ID,
		Message:       i.Message,
		DetailPreview: utils.FirstNLines(i.Detail, detailPreviewLines),
		SourceLabel:   i.SourceLabel,
		CreatedBy:     i.CreatedBy,
		Status:        i.Status,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

// IncidentsToListItems converts a slice of incidents to list items.
func IncidentsToListItems(list []incidents.Incident) []IncidentListItem {
	items := make([]IncidentListItem, len(list))
	for i, inc := range list {
		items[i] = IncidentToListItem(inc)
	}
	return items
}

// IncidentToDetail combines an incident with its patch and event count.
func IncidentToDetail(inc incidents.Incident, patch *incidents.Patch, eventCount int) IncidentDetailResponse {
	return IncidentDetailResponse{
		Incident:   inc,
		Patch:      patch,
		EventCount: eventCount,
	}
}

// CreateRequestToNewIncident maps a validated create request to store input.
func CreateRequestToNewIncident(req CreateIncidentRequest, createdBy string) incidents.NewIncident {
	return incidents.NewIncident{
		Message:     req.Message,
		Detail:      req.Detail,
		SourceLabel: utils.SanitizeSourceLabel(req.SourceLabel),
		CreatedBy:   createdBy,
	}
}
