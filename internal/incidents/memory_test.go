package incidents

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock hands out a fixed time that tests can move in either direction
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMemoryStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryStore(clock.Now), clock
}

func mustCreate(t *testing.T, s Store, msg string) *Incident {
	t.Helper()
	inc, err := s.CreateIncident(context.Background(), NewIncident{
		Message:     msg,
		Detail:      "stack trace for " + msg,
		SourceLabel: SourceManualInput,
	})
	if err != nil {
		t.Fatalf("failed to create incident: %v", err)
	}
	return inc
}

func TestMemoryStore_CreateIncident(t *testing.T) {
	s, clock := newTestMemoryStore()
	ctx := context.Background()

	inc := mustCreate(t, s, "TypeError: undefined is not a function")

	if inc.ID == "" {
		t.Error("expected a generated id")
	}
	if inc.Status != StatusOpen {
		t.Errorf("expected status OPEN, got %s", inc.Status)
	}
	if !inc.CreatedAt.Equal(clock.now) {
		t.Errorf("expected CreatedAt %v, got %v", clock.now, inc.CreatedAt)
	}

	events, err := s.ListEvents(ctx, inc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected an empty event log, got %d entries", len(events))
	}

	if _, err := s.GetPatch(ctx, inc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no patch, got %v", err)
	}
}

func TestMemoryStore_CreateIncident_Validation(t *testing.T) {
	s, _ := newTestMemoryStore()

	_, err := s.CreateIncident(context.Background(), NewIncident{Message: "", Detail: "x"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	list, _ := s.ListIncidents(context.Background())
	if len(list) != 0 {
		t.Errorf("expected no incidents to be stored, got %d", len(list))
	}
}

func TestMemoryStore_ListIncidents_NewestFirst(t *testing.T) {
	s, clock := newTestMemoryStore()

	first := mustCreate(t, s, "first")
	clock.Advance(time.Second)
	second := mustCreate(t, s, "second")
	// same instant as second: insertion order breaks the tie
	third := mustCreate(t, s, "third")

	list, err := s.ListIncidents(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 incidents, got %d", len(list))
	}

	want := []string{third.ID, second.ID, first.ID}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: expected %s, got %s (%s)", i, id, list[i].ID, list[i].Message)
		}
	}
}

func TestMemoryStore_SetStatus(t *testing.T) {
	s, clock := newTestMemoryStore()
	ctx := context.Background()
	inc := mustCreate(t, s, "boom")

	clock.Advance(time.Minute)
	updated, err := s.SetStatus(ctx, inc.ID, StatusAnalyzing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusAnalyzing {
		t.Errorf("expected ANALYZING, got %s", updated.Status)
	}
	if !updated.UpdatedAt.After(inc.UpdatedAt) {
		t.Error("expected UpdatedAt to move forward")
	}

	if _, err := s.SetStatus(ctx, inc.ID, StatusResolved); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	got, _ := s.GetIncident(ctx, inc.ID)
	if got.Status != StatusAnalyzing {
		t.Errorf("rejected transition changed status to %s", got.Status)
	}
}

func TestMemoryStore_SetStatus_NotFound(t *testing.T) {
	s, _ := newTestMemoryStore()

	if _, err := s.SetStatus(context.Background(), "missing", StatusAnalyzing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_AppendEvent(t *testing.T) {
	s, clock := newTestMemoryStore()
	ctx := context.Background()
	inc := mustCreate(t, s, "boom")

	steps := []string{"Triage", "Log Analysis", "Querying Gemini 2.5 Flash"}
	for _, step := range steps {
		before, _ := s.ListEvents(ctx, inc.ID)
		if _, err := s.AppendEvent(ctx, NewEvent{IncidentID: inc.ID, Step: step, Outcome: OutcomeSuccess}); err != nil {
			t.Fatalf("failed to append %q: %v", step, err)
		}
		after, _ := s.ListEvents(ctx, inc.ID)

		if len(after) != len(before)+1 {
			t.Fatalf("expected log to grow by one, got %d -> %d", len(before), len(after))
		}
		for i := range before {
			if after[i] != before[i] {
				t.Errorf("existing entry %d changed after append", i)
			}
		}
		if after[len(after)-1].Step != step {
			t.Errorf("expected trailing step %q, got %q", step, after[len(after)-1].Step)
		}
		clock.Advance(time.Second)
	}
}

func TestMemoryStore_AppendEvent_ClockStepsBack(t *testing.T) {
	s, clock := newTestMemoryStore()
	ctx := context.Background()
	inc := mustCreate(t, s, "boom")

	first, _ := s.AppendEvent(ctx, NewEvent{IncidentID: inc.ID, Step: "Triage", Outcome: OutcomeSuccess})
	clock.Advance(-time.Hour)
	second, err := s.AppendEvent(ctx, NewEvent{IncidentID: inc.ID, Step: "Log Analysis", Outcome: OutcomeSuccess})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.Timestamp.Before(first.Timestamp) {
		t.Errorf("timestamps went backwards: %v then %v", first.Timestamp, second.Timestamp)
	}
}

func TestMemoryStore_AppendEvent_Errors(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()
	inc := mustCreate(t, s, "boom")

	if _, err := s.AppendEvent(ctx, NewEvent{IncidentID: "missing", Step: "Triage", Outcome: OutcomeSuccess}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.AppendEvent(ctx, NewEvent{IncidentID: inc.ID, Step: "Triage", Outcome: "unknown"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	events, _ := s.ListEvents(ctx, inc.ID)
	if len(events) != 0 {
		t.Errorf("expected rejected appends to leave the log empty, got %d", len(events))
	}
}

func TestMemoryStore_ListEvents_ReturnsCopy(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()
	inc := mustCreate(t, s, "boom")
	s.AppendEvent(ctx, NewEvent{IncidentID: inc.ID, Step: "Triage", Outcome: OutcomeSuccess})

	events, _ := s.ListEvents(ctx, inc.ID)
	events[0].Step = "tampered"

	again, _ := s.ListEvents(ctx, inc.ID)
	if again[0].Step != "Triage" {
		t.Errorf("stored event was mutated through a returned slice: %q", again[0].Step)
	}
}

func TestMemoryStore_SavePatch_Replaces(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()
	inc := mustCreate(t, s, "boom")

	files := []string{"src/app.js"}
	_, err := s.SavePatch(ctx, inc.ID, PatchSolution{RootCause: "first", Severity: SeverityLow, FilesToModify: files}, "engine-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files[0] = "mutated"

	p, err := s.GetPatch(ctx, inc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FilesToModify[0] != "src/app.js" {
		t.Errorf("stored patch shares the caller's slice: %v", p.FilesToModify)
	}

	if _, err := s.SavePatch(ctx, inc.ID, PatchSolution{RootCause: "second", Severity: SeverityHigh}, "engine-b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ = s.GetPatch(ctx, inc.ID)
	if p.RootCause != "second" || p.Engine != "engine-b" {
		t.Errorf("expected replaced patch, got %+v", p)
	}

	if _, err := s.SavePatch(ctx, "missing", PatchSolution{}, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()

	var kinds []ChangeKind
	unsub := s.Subscribe(func(c Change) { kinds = append(kinds, c.Kind) })

	inc := mustCreate(t, s, "boom")
	s.SetStatus(ctx, inc.ID, StatusAnalyzing)
	s.AppendEvent(ctx, NewEvent{IncidentID: inc.ID, Step: "Triage", Outcome: OutcomeSuccess})
	s.SavePatch(ctx, inc.ID, PatchSolution{RootCause: "x", Severity: SeverityLow}, "")

	// rejected mutations publish nothing
	s.SetStatus(ctx, inc.ID, StatusResolved)
	s.AppendEvent(ctx, NewEvent{IncidentID: "missing", Step: "x", Outcome: OutcomeSuccess})

	unsub()
	s.SetStatus(ctx, inc.ID, StatusPatchProposed)

	want := []ChangeKind{ChangeIncidentCreated, ChangeIncidentUpdated, ChangeEventAppended, ChangePatchSaved}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d changes, got %d: %v", len(want), len(kinds), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("change %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

func TestMemoryStore_SubscriberSeesAppliedState(t *testing.T) {
	s, _ := newTestMemoryStore()
	ctx := context.Background()
	inc := mustCreate(t, s, "boom")

	var seen Status
	s.Subscribe(func(c Change) {
		if c.Kind != ChangeIncidentUpdated {
			return
		}
		got, err := s.GetIncident(ctx, c.IncidentID)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		seen = got.Status
	})

	s.SetStatus(ctx, inc.ID, StatusAnalyzing)
	if seen != StatusAnalyzing {
		t.Errorf("subscriber read %q, expected the applied status", seen)
	}
}
