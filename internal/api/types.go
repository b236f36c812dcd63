package api

import (
	"time"

	"github.com/debugops/debugops/internal/incidents"
)

// ========== Incident Types ==========

// CreateIncidentRequest is the request body for POST /api/incidents.
type CreateIncidentRequest struct {
	Message     string `json:"message" validate:"required,max=2000"`
	Detail      string `json:"detail" validate:"required,max=200000"`
	SourceLabel string `json:"source_label" validate:"omitempty,max=1024"`
}

// AnalyzeRequest is the optional request body for POST /api/incidents/{id}/analyze.
type AnalyzeRequest struct {
	Wait           bool `json:"wait"`
	TimeoutSeconds int  `json:"timeout_seconds" validate:"omitempty,min=1,max=600"`
}

// AnalyzeAcceptedResponse is returned when an analysis runs in the background.
type AnalyzeAcceptedResponse struct {
	IncidentID string           `json:"incident_id"`
	Status     incidents.Status `json:"status"`
	Message    string           `json:"message"`
}

// IncidentDetailResponse is an incident with its current patch, if any.
type IncidentDetailResponse struct {
	incidents.Incident
	Patch      *incidents.Patch `json:"patch"`
	EventCount int              `json:"event_count"`
}

// ========== Auth Types ==========

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"`
}

// ========== Health Types ==========

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   string `json:"store"`
	Engine  string `json:"engine"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Mapper Output Types ==========

// IncidentListItem is a compact representation of an incident for list views.
// The detail is reduced to its first lines.
type IncidentListItem struct {
	ID            string           `json:"id"`
	Message       string           `json:"message"`
	DetailPreview string           `json:"detail_preview"`
	SourceLabel   string           `json:"source_label"`
	CreatedBy     string           `json:"created_by,omitempty"`
	Status        incidents.Status `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
