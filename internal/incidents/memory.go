package incidents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store used when no database is configured.
// State lives for the lifetime of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	clock     Clock
	seq       uint64
	incidents map[string]*memoryIncident
	events    map[string][]Event
	patches   map[string]Patch

	notifier *Notifier
}

type memoryIncident struct {
	Incident
	seq uint64
}

// NewMemoryStore creates an empty in-memory store. A nil clock uses time.Now.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		clock:     clock,
		incidents: make(map[string]*memoryIncident),
		events:    make(map[string][]Event),
		patches:   make(map[string]Patch),
		notifier:  NewNotifier(),
	}
}

// CreateIncident validates and stores a new OPEN incident
func (s *MemoryStore) CreateIncident(ctx context.Context, in NewIncident) (*Incident, error) {
	if err := ValidateNewIncident(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	now := s.clock()
	s.seq++
	rec := &memoryIncident{
		Incident: Incident{
			ID:          uuid.New().String(),
			Message:     in.Message,
			Detail:      in.Detail,
			SourceLabel: in.SourceLabel,
			CreatedBy:   in.CreatedBy,
			Status:      StatusOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		seq: s.seq,
	}
	s.incidents[rec.ID] = rec
	out := rec.Incident
	s.mu.Unlock()

	s.notifier.Publish(Change{Kind: ChangeIncidentCreated, IncidentID: out.ID, Incident: copyIncident(out)})
	return &out, nil
}

// SetStatus moves an incident to a new status if the transition is legal
func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status) (*Incident, error) {
	s.mu.Lock()
	rec, ok := s.incidents[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	if err := CheckTransition(rec.Status, status); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("incident %s: %w", id, err)
	}
	rec.Status = status
	rec.UpdatedAt = s.clock()
	out := rec.Incident
	s.mu.Unlock()

	s.notifier.Publish(Change{Kind: ChangeIncidentUpdated, IncidentID: id, Incident: copyIncident(out)})
	return &out, nil
}

// GetIncident returns a copy of the incident with the given id
func (s *MemoryStore) GetIncident(ctx context.Context, id string) (*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	out := rec.Incident
	return &out, nil
}

// ListIncidents returns all incidents, newest first.
// Incidents created at the same instant are ordered most recently inserted first.
func (s *MemoryStore) ListIncidents(ctx context.Context) ([]Incident, error) {
	s.mu.RLock()
	recs := make([]*memoryIncident, 0, len(s.incidents))
	for _, rec := range s.incidents {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})

	out := make([]Incident, len(recs))
	for i, rec := range recs {
		out[i] = rec.Incident
	}
	return out, nil
}

// AppendEvent adds an entry to the end of an incident's event log
func (s *MemoryStore) AppendEvent(ctx context.Context, in NewEvent) (*Event, error) {
	if err := ValidateNewEvent(in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.incidents[in.IncidentID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("incident %s: %w", in.IncidentID, ErrNotFound)
	}

	log := s.events[in.IncidentID]
	ts := s.clock()
	if n := len(log); n > 0 {
		ts = NextEventTime(ts, log[n-1].Timestamp)
	}
	ev := Event{
		ID:          uuid.New().String(),
		IncidentID:  in.IncidentID,
		Step:        in.Step,
		Description: in.Description,
		Outcome:     in.Outcome,
		Timestamp:   ts,
	}
	s.events[in.IncidentID] = append(log, ev)
	s.mu.Unlock()

	published := ev
	s.notifier.Publish(Change{Kind: ChangeEventAppended, IncidentID: ev.IncidentID, Event: &published})
	return &ev, nil
}

// ListEvents returns the event log of an incident in append order
func (s *MemoryStore) ListEvents(ctx context.Context, incidentID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.incidents[incidentID]; !ok {
		return nil, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
	}
	log := s.events[incidentID]
	out := make([]Event, len(log))
	copy(out, log)
	return out, nil
}

// SavePatch stores solution as the current patch of an incident, replacing any previous one
func (s *MemoryStore) SavePatch(ctx context.Context, incidentID string, solution PatchSolution, engine string) (*Patch, error) {
	s.mu.Lock()
	if _, ok := s.incidents[incidentID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
	}
	p := Patch{
		PatchSolution: copySolution(solution),
		IncidentID:    incidentID,
		Engine:        engine,
		CreatedAt:     s.clock(),
	}
	s.patches[incidentID] = p
	s.mu.Unlock()

	published := copyPatch(p)
	s.notifier.Publish(Change{Kind: ChangePatchSaved, IncidentID: incidentID, Patch: &published})
	out := copyPatch(p)
	return &out, nil
}

// GetPatch returns the current patch of an incident
func (s *MemoryStore) GetPatch(ctx context.Context, incidentID string) (*Patch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.incidents[incidentID]; !ok {
		return nil, fmt.Errorf("incident %s: %w", incidentID, ErrNotFound)
	}
	p, ok := s.patches[incidentID]
	if !ok {
		return nil, fmt.Errorf("patch for incident %s: %w", incidentID, ErrNotFound)
	}
	out := copyPatch(p)
	return &out, nil
}

// Subscribe registers fn for every future change
func (s *MemoryStore) Subscribe(fn func(Change)) func() {
	return s.notifier.Subscribe(fn)
}

// Close is a no-op; the memory store holds no external resources
func (s *MemoryStore) Close() error {
	return nil
}

func copyIncident(in Incident) *Incident {
	return &in
}

func copySolution(in PatchSolution) PatchSolution {
	out := in
	out.FilesToModify = append([]string(nil), in.FilesToModify...)
	out.NextSteps = append([]string(nil), in.NextSteps...)
	return out
}

func copyPatch(in Patch) Patch {
	out := in
	out.PatchSolution = copySolution(in.PatchSolution)
	return out
}
