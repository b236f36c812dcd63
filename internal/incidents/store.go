package incidents

import (
	"context"
	"strings"
	"time"
)

// Store is the single source of truth for incidents, their event logs and patches.
// Every successful mutation publishes exactly one Change to subscribers after
// it has been applied.
type Store interface {
	CreateIncident(ctx context.Context, in NewIncident) (*Incident, error)
	SetStatus(ctx context.Context, id string, status Status) (*Incident, error)
	GetIncident(ctx context.Context, id string) (*Incident, error)
	ListIncidents(ctx context.Context) ([]Incident, error)

	AppendEvent(ctx context.Context, in NewEvent) (*Event, error)
	ListEvents(ctx context.Context, incidentID string) ([]Event, error)

	SavePatch(ctx context.Context, incidentID string, solution PatchSolution, engine string) (*Patch, error)
	GetPatch(ctx context.Context, incidentID string) (*Patch, error)

	Subscribe(fn func(Change)) (unsubscribe func())
	Close() error
}

// Clock returns the current time; stores take one so tests can control timestamps
type Clock func() time.Time

// ValidateNewIncident checks the required fields of a new incident
func ValidateNewIncident(in NewIncident) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Message) == "" {
		fields["message"] = "is required"
	}
	if strings.TrimSpace(in.Detail) == "" {
		fields["detail"] = "is required"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ValidateNewEvent checks the required fields of a new event
func ValidateNewEvent(in NewEvent) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Step) == "" {
		fields["step"] = "is required"
	}
	if !in.Outcome.Valid() {
		fields["outcome"] = "must be one of: pending success failed"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// CheckTransition returns a TransitionError if next is not a legal successor of current
func CheckTransition(current, next Status) error {
	if !current.CanTransitionTo(next) {
		return &TransitionError{From: current, To: next}
	}
	return nil
}

// NextEventTime keeps event timestamps of one incident non-decreasing
// even if the wall clock steps backwards.
func NextEventTime(now, last time.Time) time.Time {
	if now.Before(last) {
		return last
	}
	return now
}
