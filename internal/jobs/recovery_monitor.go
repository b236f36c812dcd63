package jobs

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/incidents"
)

// StepAnalysisFailed matches the step the orchestrator writes for a failed run
const StepAnalysisFailed = "Analysis Failed"

// RunTracker reports whether an incident has an analysis running in this process
type RunTracker interface {
	IsRunning(id string) bool
}

// RecoveryMonitor returns incidents stuck in ANALYZING to OPEN. An incident is
// stuck when no run in this process holds it and it has not changed for longer
// than the stale threshold, which happens after a crash on a persistent store.
type RecoveryMonitor struct {
	store      incidents.Store
	runs       RunTracker
	staleAfter time.Duration
	now        func() time.Time
}

// NewRecoveryMonitor creates a new recovery monitor
func NewRecoveryMonitor(store incidents.Store, runs RunTracker, staleAfter time.Duration) *RecoveryMonitor {
	return &RecoveryMonitor{
		store:      store,
		runs:       runs,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// CheckAndRecover reopens stale ANALYZING incidents and returns how many were reopened
func (m *RecoveryMonitor) CheckAndRecover(ctx context.Context) (int, error) {
	all, err := m.store.ListIncidents(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-m.staleAfter)
	recovered := 0
	for _, inc := range all {
		if inc.Status != incidents.StatusAnalyzing || inc.UpdatedAt.After(cutoff) {
			continue
		}
		if m.runs != nil && m.runs.IsRunning(inc.ID) {
			continue
		}

		// the list is a snapshot; re-check before touching the incident
		latest, err := m.store.GetIncident(ctx, inc.ID)
		if err != nil {
			zap.S().Errorf("Failed to reload incident %s: %v", inc.ID, err)
			continue
		}
		if latest.Status != incidents.StatusAnalyzing || latest.UpdatedAt.After(cutoff) {
			continue
		}
		if _, err := m.store.SetStatus(ctx, inc.ID, incidents.StatusOpen); err != nil {
			if !errors.Is(err, incidents.ErrInvalidTransition) {
				zap.S().Errorf("Failed to reopen incident %s: %v", inc.ID, err)
			}
			continue
		}
		if _, err := m.store.AppendEvent(ctx, incidents.NewEvent{
			IncidentID:  inc.ID,
			Step:        StepAnalysisFailed,
			Description: "Analysis interrupted; incident returned to the queue",
			Outcome:     incidents.OutcomeFailed,
		}); err != nil {
			zap.S().Errorf("Failed to record interrupted analysis of incident %s: %v", inc.ID, err)
		}
		recovered++
		zap.S().Infof("Reopened interrupted incident %s", inc.ID)
	}

	return recovered, nil
}

// Start runs CheckAndRecover immediately and then every interval until ctx ends
func (m *RecoveryMonitor) Start(ctx context.Context, interval time.Duration) {
	m.check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check(ctx)
		case <-ctx.Done():
			zap.S().Info("Recovery monitor stopped")
			return
		}
	}
}

func (m *RecoveryMonitor) check(ctx context.Context) {
	recovered, err := m.CheckAndRecover(ctx)
	if err != nil {
		zap.S().Errorf("Recovery monitor error: %v", err)
	} else if recovered > 0 {
		zap.S().Infof("Recovery monitor: reopened %d incidents", recovered)
	}
}
