// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"sync"
	"time"

	"github.com/debugops/debugops/internal/incidents"
)

// ========================================
// Incident Builder
// ========================================

// IncidentBuilder builds NewIncident values for testing
type IncidentBuilder struct {
	in incidents.NewIncident
}

// NewIncidentBuilder creates a new incident builder with defaults
func NewIncidentBuilder() *IncidentBuilder {
	return &IncidentBuilder{
		in: incidents.NewIncident{
			Message:     "TypeError: Cannot read properties of undefined (reading 'map')",
			Detail:      "at ProductList (ProductList.tsx:15:24)\nat renderWithHooks (react-dom.development.js:14985:18)",
			SourceLabel: "src/components/ProductList.tsx",
			CreatedBy:   "tester",
		},
	}
}

// WithMessage sets the incident message
func (b *IncidentBuilder) WithMessage(message string) *IncidentBuilder {
	b.in.Message = message
	return b
}

// WithDetail sets the incident detail
func (b *IncidentBuilder) WithDetail(detail string) *IncidentBuilder {
	b.in.Detail = detail
	return b
}

// WithSource sets the source label
func (b *IncidentBuilder) WithSource(label string) *IncidentBuilder {
	b.in.SourceLabel = label
	return b
}

// WithCreatedBy sets the reporting user
func (b *IncidentBuilder) WithCreatedBy(user string) *IncidentBuilder {
	b.in.CreatedBy = user
	return b
}

// Build returns the built NewIncident
func (b *IncidentBuilder) Build() incidents.NewIncident {
	return b.in
}

// ========================================
// Solution Builder
// ========================================

// SolutionBuilder builds PatchSolution values for testing
type SolutionBuilder struct {
	sol incidents.PatchSolution
}

// NewSolutionBuilder creates a new solution builder with defaults
func NewSolutionBuilder() *SolutionBuilder {
	return &SolutionBuilder{
		sol: incidents.PatchSolution{
			RootCause:     "products is undefined before the fetch resolves",
			Severity:      incidents.SeverityHigh,
			FilesToModify: []string{"src/components/ProductList.tsx"},
			PatchText:     "- products.map(render)\n+ (products ?? []).map(render)",
			Explanation:   "Default to an empty list until data arrives.",
			NextSteps:     []string{"Add a loading state", "Add a regression test"},
		},
	}
}

// WithRootCause sets the root cause
func (b *SolutionBuilder) WithRootCause(cause string) *SolutionBuilder {
	b.sol.RootCause = cause
	return b
}

// WithSeverity sets the severity
func (b *SolutionBuilder) WithSeverity(severity incidents.Severity) *SolutionBuilder {
	b.sol.Severity = severity
	return b
}

// WithFiles sets the files to modify
func (b *SolutionBuilder) WithFiles(files ...string) *SolutionBuilder {
	b.sol.FilesToModify = files
	return b
}

// WithPatch sets the patch text
func (b *SolutionBuilder) WithPatch(patch string) *SolutionBuilder {
	b.sol.PatchText = patch
	return b
}

// WithNextSteps sets the next steps
func (b *SolutionBuilder) WithNextSteps(steps ...string) *SolutionBuilder {
	b.sol.NextSteps = steps
	return b
}

// Build returns a copy of the built PatchSolution
func (b *SolutionBuilder) Build() incidents.PatchSolution {
	sol := b.sol
	sol.FilesToModify = append([]string(nil), b.sol.FilesToModify...)
	sol.NextSteps = append([]string(nil), b.sol.NextSteps...)
	return sol
}

// ========================================
// Clock
// ========================================

// StepClock is a manual clock. Each call to Now advances it by Step.
type StepClock struct {
	mu      sync.Mutex
	current time.Time
	Step    time.Duration
}

// NewStepClock creates a clock starting at start
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{current: start, Step: step}
}

// Now returns the current time and advances the clock
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.current
	c.current = c.current.Add(c.Step)
	return t
}

// Set moves the clock to t
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}
