package testhelpers

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/debugops/debugops/internal/incidents"
)

// ========================================
// JSON Assertion Helpers
// ========================================

// AssertJSONKeyValue checks if a JSON object has a specific key-value pair
func AssertJSONKeyValue(t *testing.T, jsonStr string, key string, expectedValue interface{}, msg string) {
	t.Helper()

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		t.Fatalf("%s: failed to parse JSON: %v", msg, err)
	}

	actualValue, exists := obj[key]
	if !exists {
		t.Errorf("%s: JSON does not contain key %q", msg, key)
		return
	}

	// Compare encoded forms so numbers decode the same way on both sides
	expectedJSON, _ := json.Marshal(expectedValue)
	actualJSON, _ := json.Marshal(actualValue)

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("%s: JSON key %q mismatch\nexpected: %v\nactual: %v", msg, key, expectedValue, actualValue)
	}
}

// ========================================
// Concurrent Testing Helpers
// ========================================

// ConcurrentTest runs fn on n goroutines released at the same moment and waits for completion
func ConcurrentTest(t *testing.T, goroutines int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			<-start
			fn(id)
		}(i)
	}

	close(start)
	wg.Wait()
}

// ========================================
// Incident Helpers
// ========================================

// MustCreate stores a new incident and fails the test on error
func MustCreate(t *testing.T, store incidents.Store, in incidents.NewIncident) *incidents.Incident {
	t.Helper()
	inc, err := store.CreateIncident(context.Background(), in)
	if err != nil {
		t.Fatalf("failed to create incident: %v", err)
	}
	return inc
}

// AssertStatus checks the stored status of an incident
func AssertStatus(t *testing.T, store incidents.Store, id string, expected incidents.Status) {
	t.Helper()
	inc, err := store.GetIncident(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to get incident %s: %v", id, err)
	}
	if inc.Status != expected {
		t.Errorf("incident %s: expected status %s, got %s", id, expected, inc.Status)
	}
}

// EventSteps returns the steps of an incident's events in log order
func EventSteps(t *testing.T, store incidents.Store, id string) []string {
	t.Helper()
	events, err := store.ListEvents(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to list events of %s: %v", id, err)
	}
	steps := make([]string, len(events))
	for i, ev := range events {
		steps[i] = ev.Step
	}
	return steps
}

// AssertSteps checks the exact event steps of an incident
func AssertSteps(t *testing.T, store incidents.Store, id string, expected ...string) {
	t.Helper()
	got := EventSteps(t, store, id)
	if strings.Join(got, "|") != strings.Join(expected, "|") {
		t.Errorf("incident %s: expected steps %q, got %q", id, expected, got)
	}
}

// AssertTimeWithin checks if a time is within a tolerance of a reference time
func AssertTimeWithin(t *testing.T, actual, reference time.Time, tolerance time.Duration, msg string) {
	t.Helper()
	diff := actual.Sub(reference)
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Errorf("%s: expected %v to be within %v of %v (diff: %v)", msg, actual, tolerance, reference, diff)
	}
}
