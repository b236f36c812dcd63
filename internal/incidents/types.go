// Package incidents holds the incident lifecycle: statuses and their legal
// transitions, the append-only event log, patch records, and the store that
// owns them.
package incidents

import (
	"strings"
	"time"
)

// Status represents the lifecycle status of an incident
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusAnalyzing     Status = "ANALYZING"
	StatusPatchProposed Status = "PATCH_PROPOSED"
	StatusResolved      Status = "RESOLVED"
)

// transitions lists the legal successors of each status.
// ANALYZING -> OPEN is the retry path taken when an analysis fails.
var transitions = map[Status][]Status{
	StatusOpen:          {StatusAnalyzing},
	StatusAnalyzing:     {StatusPatchProposed, StatusOpen},
	StatusPatchProposed: {StatusResolved},
	StatusResolved:      nil,
}

// Valid returns true if s is one of the known statuses
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo returns true if next is a legal successor of s
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Outcome is the result recorded on an event
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Valid returns true if o is a known outcome
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePending, OutcomeSuccess, OutcomeFailed:
		return true
	}
	return false
}

// Severity is the impact level assigned by the analysis engine
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity normalizes a free-form severity string.
// Matching is case-insensitive; anything outside the four levels is rejected.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityCritical:
		return SeverityCritical, true
	}
	return "", false
}

// Well-known source labels
const (
	SourceManualInput     = "manual_input"
	SourceExternalURL     = "external_url"
	SourceVoiceTranscript = "voice_transcript"
	SourceSimulated       = "simulated"
)

// Incident is a user-submitted report to be analyzed
type Incident struct {
	ID          string    `json:"id"`
	Message     string    `json:"message"`
	Detail      string    `json:"detail"`
	SourceLabel string    `json:"source_label"`
	CreatedBy   string    `json:"created_by,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewIncident carries the caller-supplied fields for CreateIncident
type NewIncident struct {
	Message     string
	Detail      string
	SourceLabel string
	CreatedBy   string
}

// Event is one immutable audit-trail entry of an incident
type Event struct {
	ID          string    `json:"id"`
	IncidentID  string    `json:"incident_id"`
	Step        string    `json:"step"`
	Description string    `json:"description"`
	Outcome     Outcome   `json:"outcome"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEvent carries the caller-supplied fields for AppendEvent
type NewEvent struct {
	IncidentID  string
	Step        string
	Description string
	Outcome     Outcome
}

// PatchSolution is the structured result of analyzing an incident
type PatchSolution struct {
	RootCause     string   `json:"root_cause"`
	Severity      Severity `json:"severity"`
	FilesToModify []string `json:"files_to_modify"`
	PatchText     string   `json:"patch"`
	Explanation   string   `json:"explanation"`
	NextSteps     []string `json:"next_steps"`
}

// Patch is the stored PatchSolution of an incident
type Patch struct {
	PatchSolution
	IncidentID string    `json:"incident_id"`
	Engine     string    `json:"engine,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
