package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debugops/debugops/internal/incidents"
)

var _ incidents.Store = (*GormStore)(nil)

// GormStore is an incidents.Store backed by PostgreSQL or SQLite.
// Changes are published to subscribers after the writing transaction commits.
type GormStore struct {
	db       *gorm.DB
	clock    incidents.Clock
	notifier *incidents.Notifier
}

// NewGormStore wraps an open, migrated database. A nil clock uses time.Now.
func NewGormStore(db *gorm.DB, clock incidents.Clock) *GormStore {
	if clock == nil {
		clock = time.Now
	}
	return &GormStore{
		db:       db,
		clock:    clock,
		notifier: incidents.NewNotifier(),
	}
}

// DB returns the underlying gorm handle
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// ========== Incidents ==========

// CreateIncident validates and inserts a new OPEN incident
func (s *GormStore) CreateIncident(ctx context.Context, in incidents.NewIncident) (*incidents.Incident, error) {
	if err := incidents.ValidateNewIncident(in); err != nil {
		return nil, err
	}

	now := s.now()
	rec := IncidentRecord{
		UUID:        uuid.New().String(),
		Message:     in.Message,
		Detail:      in.Detail,
		SourceLabel: in.SourceLabel,
		CreatedBy:   in.CreatedBy,
		Status:      string(incidents.StatusOpen),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	out := rec.ToIncident()
	published := out
	s.notifier.Publish(incidents.Change{Kind: incidents.ChangeIncidentCreated, IncidentID: out.ID, Incident: &published})
	return &out, nil
}

// SetStatus moves an incident to a new status if the transition is legal.
// The update is conditional on the status that was checked, so two concurrent
// callers cannot both win the same transition.
func (s *GormStore) SetStatus(ctx context.Context, id string, status incidents.Status) (*incidents.Incident, error) {
	db := s.db.WithContext(ctx)

	rec, err := s.findIncident(db, id)
	if err != nil {
		return nil, err
	}
	current := incidents.Status(rec.Status)
	if err := incidents.CheckTransition(current, status); err != nil {
		return nil, fmt.Errorf("incident %s: %w", id, err)
	}

	now := s.now()
	result := db.Model(&IncidentRecord{}).
		Where("id = ? AND status = ?", rec.ID, rec.Status).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update incident %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		// lost a race: report against the status that won
		latest, err := s.findIncident(db, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("incident %s: %w", id, &incidents.TransitionError{
			From: incidents.Status(latest.Status),
			To:   status,
		})
	}

	rec.Status = string(status)
	rec.UpdatedAt = now
	out := rec.ToIncident()
	published := out
	s.notifier.Publish(incidents.Change{Kind: incidents.ChangeIncidentUpdated, IncidentID: id, Incident: &published})
	return &out, nil
}

// GetIncident returns the incident with the given id
func (s *GormStore) GetIncident(ctx context.Context, id string) (*incidents.Incident, error) {
	rec, err := s.findIncident(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	out := rec.ToIncident()
	return &out, nil
}

// ListIncidents returns all incidents, newest first, most recently inserted first on ties
func (s *GormStore) ListIncidents(ctx context.Context) ([]incidents.Incident, error) {
	var recs []IncidentRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	out := make([]incidents.Incident, len(recs))
	for i := range recs {
		out[i] = recs[i].ToIncident()
	}
	return out, nil
}

// ========== Event Log ==========

// AppendEvent inserts a new entry at the end of an incident's event log
func (s *GormStore) AppendEvent(ctx context.Context, in incidents.NewEvent) (*incidents.Event, error) {
	if err := incidents.ValidateNewEvent(in); err != nil {
		return nil, err
	}

	var ev incidents.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := s.findIncident(tx, in.IncidentID)
		if err != nil {
			return err
		}

		ts := s.now()
		var last EventRecord
		err = tx.Where("incident_id = ?", inc.ID).Order("timestamp DESC, id DESC").Limit(1).Find(&last).Error
		if err != nil {
			return fmt.Errorf("failed to read event log: %w", err)
		}
		if last.ID != 0 {
			ts = incidents.NextEventTime(ts, last.Timestamp)
		}

		rec := EventRecord{
			UUID:        uuid.New().String(),
			IncidentID:  inc.ID,
			Step:        in.Step,
			Description: in.Description,
			Outcome:     string(in.Outcome),
			Timestamp:   ts,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		ev = rec.ToEvent(inc.UUID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	published := ev
	s.notifier.Publish(incidents.Change{Kind: incidents.ChangeEventAppended, IncidentID: ev.IncidentID, Event: &published})
	return &ev, nil
}

// ListEvents returns an incident's event log, oldest first
func (s *GormStore) ListEvents(ctx context.Context, incidentID string) ([]incidents.Event, error) {
	db := s.db.WithContext(ctx)
	inc, err := s.findIncident(db, incidentID)
	if err != nil {
		return nil, err
	}

	var recs []EventRecord
	if err := db.Where("incident_id = ?", inc.ID).Order("timestamp ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]incidents.Event, len(recs))
	for i := range recs {
		out[i] = recs[i].ToEvent(inc.UUID)
	}
	return out, nil
}

// ========== Patches ==========

// SavePatch stores solution as the current patch of an incident, replacing any previous one
func (s *GormStore) SavePatch(ctx context.Context, incidentID string, solution incidents.PatchSolution, engine string) (*incidents.Patch, error) {
	var p incidents.Patch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inc, err := s.findIncident(tx, incidentID)
		if err != nil {
			return err
		}

		now := s.now()
		var rec PatchRecord
		if err := tx.Where("incident_id = ?", inc.ID).Limit(1).Find(&rec).Error; err != nil {
			return fmt.Errorf("failed to read patch: %w", err)
		}
		rec.IncidentID = inc.ID
		rec.RootCause = solution.RootCause
		rec.Severity = string(solution.Severity)
		rec.FilesToModify = append(StringList{}, solution.FilesToModify...)
		rec.PatchText = solution.PatchText
		rec.Explanation = solution.Explanation
		rec.NextSteps = append(StringList{}, solution.NextSteps...)
		rec.Engine = engine
		rec.CreatedAt = now
		rec.UpdatedAt = now

		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("failed to save patch: %w", err)
		}
		p = rec.ToPatch(inc.UUID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	published := p
	published.FilesToModify = append([]string{}, p.FilesToModify...)
	published.NextSteps = append([]string{}, p.NextSteps...)
	s.notifier.Publish(incidents.Change{Kind: incidents.ChangePatchSaved, IncidentID: incidentID, Patch: &published})
	return &p, nil
}

// GetPatch returns the current patch of an incident
func (s *GormStore) GetPatch(ctx context.Context, incidentID string) (*incidents.Patch, error) {
	db := s.db.WithContext(ctx)
	inc, err := s.findIncident(db, incidentID)
	if err != nil {
		return nil, err
	}

	var rec PatchRecord
	if err := db.Where("incident_id = ?", inc.ID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("patch for incident %s: %w", incidentID, incidents.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get patch: %w", err)
	}
	out := rec.ToPatch(inc.UUID)
	return &out, nil
}

// ========== Lifecycle ==========

// Subscribe registers fn for every future committed change
func (s *GormStore) Subscribe(fn func(incidents.Change)) func() {
	return s.notifier.Subscribe(fn)
}

// Close closes the database connection
func (s *GormStore) Close() error {
	return Close(s.db)
}

func (s *GormStore) findIncident(db *gorm.DB, id string) (*IncidentRecord, error) {
	var rec IncidentRecord
	if err := db.Where("uuid = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("incident %s: %w", id, incidents.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}
	return &rec, nil
}

// now truncates to microseconds so values round-trip through PostgreSQL unchanged
func (s *GormStore) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}
