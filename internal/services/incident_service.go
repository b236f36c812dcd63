package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/incidents"
	"github.com/debugops/debugops/internal/telemetry"
	"github.com/debugops/debugops/internal/templates"
)

// IncidentService creates incidents and starts analysis when auto-analyze is on
type IncidentService struct {
	store     incidents.Store
	analysis  *AnalysisService
	settings  *SettingsService
	templates *templates.Set
	reporter  telemetry.Reporter
}

// NewIncidentService creates a new IncidentService
func NewIncidentService(store incidents.Store, analysis *AnalysisService, settings *SettingsService, tmpl *templates.Set, reporter telemetry.Reporter) *IncidentService {
	if reporter == nil {
		reporter = telemetry.Nop{}
	}
	if tmpl == nil {
		tmpl = templates.Default()
	}
	return &IncidentService{
		store:     store,
		analysis:  analysis,
		settings:  settings,
		templates: tmpl,
		reporter:  reporter,
	}
}

// Create stores a new incident. An empty source label becomes manual_input.
func (s *IncidentService) Create(ctx context.Context, in incidents.NewIncident) (*incidents.Incident, error) {
	if in.SourceLabel == "" {
		in.SourceLabel = incidents.SourceManualInput
	}
	inc, err := s.store.CreateIncident(ctx, in)
	if err != nil {
		return nil, err
	}
	zap.S().Infof("Created incident %s from %s", inc.ID, inc.SourceLabel)

	s.maybeAnalyze(ctx, inc)
	return inc, nil
}

// Simulate creates an incident from a random template and reports it as a
// simulated error to telemetry
func (s *IncidentService) Simulate(ctx context.Context, createdBy string) (*incidents.Incident, error) {
	tmpl := s.templates.Random()
	source := tmpl.SourceLabel
	if source == "" {
		source = incidents.SourceSimulated
	}
	inc, err := s.store.CreateIncident(ctx, incidents.NewIncident{
		Message:     tmpl.Message,
		Detail:      tmpl.Detail,
		SourceLabel: source,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return nil, err
	}
	zap.S().Infof("Simulated incident %s: %s", inc.ID, inc.Message)

	s.reporter.CaptureError(errors.New(tmpl.Message), map[string]string{
		"file":      source,
		"simulated": "true",
	})

	s.maybeAnalyze(ctx, inc)
	return inc, nil
}

func (s *IncidentService) maybeAnalyze(ctx context.Context, inc *incidents.Incident) {
	if s.analysis == nil || s.settings == nil || !s.settings.AutoAnalyze() {
		return
	}
	if err := s.analysis.StartAnalysis(ctx, inc.ID, s.settings.AnalysisTimeout()); err != nil {
		zap.S().Warnf("Auto-analyze of incident %s did not start: %v", inc.ID, err)
	}
}
