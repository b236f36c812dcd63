package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/incidents"
	"github.com/debugops/debugops/internal/telemetry"
)

// Event steps written by the analysis workflow
const (
	StepInitialized      = "Initialized Agent"
	StepLogAnalysis      = "Log Analysis"
	StepQueryingPrefix   = "Querying "
	StepAnalysisComplete = "Analysis Complete"
	StepAnalysisFailed   = "Analysis Failed"
	StepApplyingPatch    = "Applying Patch"
	StepResolved         = "Resolved"
)

// Analyzer produces a patch solution for an incident
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, message, detail, sourceLabel string) (*incidents.PatchSolution, error)
}

// AnalysisConfig holds the orchestrator's timing knobs
type AnalysisConfig struct {
	// DefaultTimeout bounds the analyzer call when a run does not pass its own timeout
	DefaultTimeout time.Duration
	// DeployDelay is waited before a patch is marked applied
	DeployDelay time.Duration
}

// AnalysisService drives an incident from OPEN through ANALYZING to
// PATCH_PROPOSED, and from PATCH_PROPOSED to RESOLVED. At most one run or
// apply is active per incident.
type AnalysisService struct {
	store    incidents.Store
	analyzer Analyzer
	reporter telemetry.Reporter
	cfg      AnalysisConfig

	mu     sync.Mutex
	active map[string]struct{}

	// runCtx parents background runs; Stop cancels it
	runCtx  context.Context
	stopRun context.CancelFunc
	wg      sync.WaitGroup
}

// NewAnalysisService creates a new AnalysisService. A nil reporter discards telemetry.
func NewAnalysisService(store incidents.Store, analyzer Analyzer, reporter telemetry.Reporter, cfg AnalysisConfig) *AnalysisService {
	if reporter == nil {
		reporter = telemetry.Nop{}
	}
	runCtx, stop := context.WithCancel(context.Background())
	return &AnalysisService{
		store:    store,
		analyzer: analyzer,
		reporter: reporter,
		cfg:      cfg,
		active:   make(map[string]struct{}),
		runCtx:   runCtx,
		stopRun:  stop,
	}
}

// EngineName returns the label of the configured analyzer
func (s *AnalysisService) EngineName() string {
	return s.analyzer.Name()
}

// ========== Analysis ==========

// RunAnalysis analyzes an OPEN incident and blocks until the run finishes.
// Once the incident has been moved to ANALYZING it always ends in either
// PATCH_PROPOSED or OPEN, even if ctx is cancelled; cancellation only aborts
// the analyzer call. A timeout <= 0 uses the configured default.
func (s *AnalysisService) RunAnalysis(ctx context.Context, id string, timeout time.Duration) (*incidents.Patch, error) {
	if !s.acquire(id) {
		return nil, fmt.Errorf("incident %s: analysis already running: %w", id, incidents.ErrInvalidState)
	}
	defer s.release(id)

	inc, err := s.begin(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.analyze(ctx, inc, timeout)
}

// StartAnalysis moves an OPEN incident to ANALYZING and finishes the run in
// the background. Precondition failures are returned before anything starts.
func (s *AnalysisService) StartAnalysis(ctx context.Context, id string, timeout time.Duration) error {
	if !s.acquire(id) {
		return fmt.Errorf("incident %s: analysis already running: %w", id, incidents.ErrInvalidState)
	}

	inc, err := s.begin(ctx, id)
	if err != nil {
		s.release(id)
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(id)
		if _, err := s.analyze(s.runCtx, inc, timeout); err != nil {
			zap.S().Warnf("Background analysis of incident %s failed: %v", id, err)
		}
	}()
	return nil
}

// begin checks the precondition, claims the incident and records the first event
func (s *AnalysisService) begin(ctx context.Context, id string) (*incidents.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status != incidents.StatusOpen {
		return nil, fmt.Errorf("incident %s is %s, expected %s: %w", id, inc.Status, incidents.StatusOpen, incidents.ErrInvalidState)
	}

	w := context.WithoutCancel(ctx)
	inc, err = s.store.SetStatus(w, id, incidents.StatusAnalyzing)
	if err != nil {
		if errors.Is(err, incidents.ErrInvalidTransition) {
			// another process claimed it between the read and the update
			return nil, fmt.Errorf("incident %s: %w: %w", id, incidents.ErrInvalidState, err)
		}
		return nil, err
	}

	if _, err := s.appendEvent(w, id, StepInitialized, "Agent received incident report. Beginning triage.", incidents.OutcomeSuccess); err != nil {
		return nil, s.fail(w, inc, err)
	}

	zap.S().Infof("Analysis started for incident %s", id)
	return inc, nil
}

func (s *AnalysisService) analyze(ctx context.Context, inc *incidents.Incident, timeout time.Duration) (*incidents.Patch, error) {
	w := context.WithoutCancel(ctx)
	engine := s.analyzer.Name()

	source := inc.SourceLabel
	if source == "" {
		source = "unknown source"
	}
	if _, err := s.appendEvent(w, inc.ID, StepLogAnalysis, fmt.Sprintf("Parsing context from %s...", source), incidents.OutcomeSuccess); err != nil {
		return nil, s.fail(w, inc, err)
	}
	if _, err := s.appendEvent(w, inc.ID, StepQueryingPrefix+engine, "Sending context to LLM for root cause analysis.", incidents.OutcomePending); err != nil {
		return nil, s.fail(w, inc, err)
	}

	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	solution, err := s.callAnalyzer(callCtx, inc)
	cancel()
	if err != nil {
		return nil, s.fail(w, inc, fmt.Errorf("%w: %w", incidents.ErrCollaborator, err))
	}

	patch, err := s.store.SavePatch(w, inc.ID, *solution, engine)
	if err != nil {
		return nil, s.fail(w, inc, err)
	}
	if _, err := s.store.SetStatus(w, inc.ID, incidents.StatusPatchProposed); err != nil {
		return nil, s.fail(w, inc, err)
	}
	if _, err := s.appendEvent(w, inc.ID, StepAnalysisComplete, "Root cause identified. Solution proposed.", incidents.OutcomeSuccess); err != nil {
		zap.S().Errorf("Failed to record completion of incident %s: %v", inc.ID, err)
	}

	zap.S().Infof("Patch proposed for incident %s (severity %s)", inc.ID, patch.Severity)
	return patch, nil
}

// callAnalyzer runs the analyzer under ctx. A panic, a nil result, an unknown
// severity or a call that outlives ctx are all reported as errors.
func (s *AnalysisService) callAnalyzer(ctx context.Context, inc *incidents.Incident) (*incidents.PatchSolution, error) {
	type result struct {
		solution *incidents.PatchSolution
		err      error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("analyzer panicked: %v", p)}
			}
		}()
		sol, err := s.analyzer.Analyze(ctx, inc.Message, inc.Detail, inc.SourceLabel)
		done <- result{solution: sol, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.solution == nil {
		return nil, errors.New("analyzer returned no solution")
	}
	severity, ok := incidents.ParseSeverity(string(r.solution.Severity))
	if !ok {
		return nil, fmt.Errorf("analyzer returned unknown severity %q", r.solution.Severity)
	}
	sol := *r.solution
	sol.Severity = severity
	return &sol, nil
}

// fail records the failed run, returns the incident to OPEN and reports cause
func (s *AnalysisService) fail(w context.Context, inc *incidents.Incident, cause error) error {
	zap.S().Errorf("Analysis failed for incident %s: %v", inc.ID, cause)

	if _, err := s.appendEvent(w, inc.ID, StepAnalysisFailed, "Could not generate patch. See server logs.", incidents.OutcomeFailed); err != nil {
		zap.S().Errorf("Failed to record analysis failure for incident %s: %v", inc.ID, err)
	}
	if _, err := s.store.SetStatus(w, inc.ID, incidents.StatusOpen); err != nil {
		zap.S().Errorf("Failed to reopen incident %s: %v", inc.ID, err)
	}

	s.reporter.CaptureError(cause, map[string]string{
		"context":     "analysis",
		"incident_id": inc.ID,
		"engine":      s.analyzer.Name(),
	})
	return fmt.Errorf("analysis of incident %s failed: %w", inc.ID, cause)
}

// ========== Resolution ==========

// ApplyPatch deploys the proposed patch and resolves the incident.
// If ctx ends during the deploy delay nothing is changed.
func (s *AnalysisService) ApplyPatch(ctx context.Context, id string) (*incidents.Incident, error) {
	if !s.acquire(id) {
		return nil, fmt.Errorf("incident %s: operation already running: %w", id, incidents.ErrInvalidState)
	}
	defer s.release(id)

	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc.Status != incidents.StatusPatchProposed {
		return nil, fmt.Errorf("incident %s is %s, expected %s: %w", id, inc.Status, incidents.StatusPatchProposed, incidents.ErrInvalidState)
	}

	if s.cfg.DeployDelay > 0 {
		timer := time.NewTimer(s.cfg.DeployDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	w := context.WithoutCancel(ctx)
	if _, err := s.appendEvent(w, id, StepApplyingPatch, "Deploying fix to production environment...", incidents.OutcomeSuccess); err != nil {
		return nil, err
	}
	resolved, err := s.store.SetStatus(w, id, incidents.StatusResolved)
	if err != nil {
		return nil, err
	}
	if _, err := s.appendEvent(w, id, StepResolved, "Patch verification successful. Incident closed.", incidents.OutcomeSuccess); err != nil {
		return nil, err
	}

	zap.S().Infof("Incident %s resolved", id)
	return resolved, nil
}

// ========== Lifecycle ==========

// IsRunning reports whether a run or apply currently holds the incident
func (s *AnalysisService) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	return ok
}

// Wait blocks until every background run has finished
func (s *AnalysisService) Wait() {
	s.wg.Wait()
}

// Stop cancels the analyzer calls of background runs and waits for them to
// record their outcome. Cancelled runs end in OPEN.
func (s *AnalysisService) Stop() {
	s.stopRun()
	s.wg.Wait()
}

func (s *AnalysisService) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[id]; busy {
		return false
	}
	s.active[id] = struct{}{}
	return true
}

func (s *AnalysisService) release(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

func (s *AnalysisService) appendEvent(ctx context.Context, id, step, description string, outcome incidents.Outcome) (*incidents.Event, error) {
	return s.store.AppendEvent(ctx, incidents.NewEvent{
		IncidentID:  id,
		Step:        step,
		Description: description,
		Outcome:     outcome,
	})
}
