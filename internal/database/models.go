package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/debugops/debugops/internal/incidents"
)

// StringList is an ordered list of strings stored as a JSON array in a text column
type StringList []string

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(raw, l)
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// IncidentRecord is the persisted form of an incident.
// The numeric ID orders inserts; UUID is the public identifier.
type IncidentRecord struct {
	ID          uint      `gorm:"primaryKey"`
	UUID        string    `gorm:"uniqueIndex;size:36;not null"`
	Message     string    `gorm:"type:text;not null"`
	Detail      string    `gorm:"type:text;not null"`
	SourceLabel string    `gorm:"size:255"`
	CreatedBy   string    `gorm:"size:255"`
	Status      string    `gorm:"size:32;not null;index"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

func (IncidentRecord) TableName() string {
	return "incidents"
}

// ToIncident converts the record to its domain form
func (r *IncidentRecord) ToIncident() incidents.Incident {
	return incidents.Incident{
		ID:          r.UUID,
		Message:     r.Message,
		Detail:      r.Detail,
		SourceLabel: r.SourceLabel,
		CreatedBy:   r.CreatedBy,
		Status:      incidents.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// EventRecord is one persisted event log entry. Rows are never updated or deleted.
type EventRecord struct {
	ID          uint      `gorm:"primaryKey"`
	UUID        string    `gorm:"uniqueIndex;size:36;not null"`
	IncidentID  uint      `gorm:"not null;index:idx_events_incident_ts,priority:1"`
	Step        string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	Outcome     string    `gorm:"size:16;not null"`
	Timestamp   time.Time `gorm:"not null;index:idx_events_incident_ts,priority:2"`
}

func (EventRecord) TableName() string {
	return "incident_events"
}

// ToEvent converts the record to its domain form
func (r *EventRecord) ToEvent(incidentUUID string) incidents.Event {
	return incidents.Event{
		ID:          r.UUID,
		IncidentID:  incidentUUID,
		Step:        r.Step,
		Description: r.Description,
		Outcome:     incidents.Outcome(r.Outcome),
		Timestamp:   r.Timestamp,
	}
}

// PatchRecord holds the current patch of an incident; at most one per incident
type PatchRecord struct {
	ID            uint       `gorm:"primaryKey"`
	IncidentID    uint       `gorm:"uniqueIndex;not null"`
	RootCause     string     `gorm:"type:text"`
	Severity      string     `gorm:"size:16"`
	FilesToModify StringList `gorm:"type:text"`
	PatchText     string     `gorm:"type:text"`
	Explanation   string     `gorm:"type:text"`
	NextSteps     StringList `gorm:"type:text"`
	Engine        string     `gorm:"size:128"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PatchRecord) TableName() string {
	return "incident_patches"
}

// ToPatch converts the record to its domain form
func (r *PatchRecord) ToPatch(incidentUUID string) incidents.Patch {
	return incidents.Patch{
		PatchSolution: incidents.PatchSolution{
			RootCause:     r.RootCause,
			Severity:      incidents.Severity(r.Severity),
			FilesToModify: append([]string{}, r.FilesToModify...),
			PatchText:     r.PatchText,
			Explanation:   r.Explanation,
			NextSteps:     append([]string{}, r.NextSteps...),
		},
		IncidentID: incidentUUID,
		Engine:     r.Engine,
		CreatedAt:  r.CreatedAt,
	}
}
