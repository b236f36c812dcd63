// Package testhelpers provides reusable testing utilities for DebugOps.
//
// This package contains:
// - HTTP test helpers (creating requests, asserting responses)
// - A scriptable analyzer and a recording telemetry reporter
// - Incident and solution builders
// - Waiting and assertion helpers
package testhelpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/debugops/debugops/internal/incidents"
)

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	header := ctx.Request.Header.Clone()
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header = header
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// WithRawBody sets an unencoded body on the request
func (ctx *HTTPTestContext) WithRawBody(body string) *HTTPTestContext {
	header := ctx.Request.Header.Clone()
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), strings.NewReader(body))
	ctx.Request.Header = header
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// WithContext replaces the request context
func (ctx *HTTPTestContext) WithContext(c context.Context) *HTTPTestContext {
	ctx.Request = ctx.Request.WithContext(c)
	return ctx
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// ExecuteFunc runs the handler func and returns the response
func (ctx *HTTPTestContext) ExecuteFunc(handler http.HandlerFunc) *HTTPTestContext {
	handler(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !strings.Contains(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// AssertHeader checks response header value
func (ctx *HTTPTestContext) AssertHeader(key, expected string) *HTTPTestContext {
	ctx.T.Helper()
	got := ctx.Recorder.Header().Get(key)
	if got != expected {
		ctx.T.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Stub Analyzer
// ========================================

// StubAnalyzer is a scriptable analyzer. By default it returns the solution
// built by NewSolutionBuilder.
type StubAnalyzer struct {
	mu       sync.Mutex
	name     string
	solution *incidents.PatchSolution
	err      error
	delay    time.Duration
	panicMsg string
	ignore   bool
	block    chan struct{}
	calls    int
}

// NewStubAnalyzer creates a new stub analyzer
func NewStubAnalyzer() *StubAnalyzer {
	sol := NewSolutionBuilder().Build()
	return &StubAnalyzer{name: "Stub (test-model)", solution: &sol}
}

// WithName sets the engine name
func (s *StubAnalyzer) WithName(name string) *StubAnalyzer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	return s
}

// WithSolution sets the returned solution; nil makes Analyze return (nil, nil)
func (s *StubAnalyzer) WithSolution(sol *incidents.PatchSolution) *StubAnalyzer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.solution = sol
	return s
}

// WithError makes Analyze fail with err
func (s *StubAnalyzer) WithError(err error) *StubAnalyzer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// WithDelay makes Analyze wait before answering, honoring ctx
func (s *StubAnalyzer) WithDelay(d time.Duration) *StubAnalyzer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return s
}

// IgnoringContext makes the delay ignore ctx cancellation
func (s *StubAnalyzer) IgnoringContext() *StubAnalyzer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignore = true
	return s
}

// WithPanic makes Analyze panic with msg
func (s *StubAnalyzer) WithPanic(msg string) *StubAnalyzer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicMsg = msg
	return s
}

// Blocking makes Analyze wait until Release is called or ctx ends
func (s *StubAnalyzer) Blocking() *StubAnalyzer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = make(chan struct{})
	return s
}

// Release unblocks every pending and future Analyze call
func (s *StubAnalyzer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.block != nil {
		close(s.block)
		s.block = nil
	}
}

// Calls returns how many times Analyze was invoked
func (s *StubAnalyzer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Name returns the engine name
func (s *StubAnalyzer) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Analyze returns the scripted result
func (s *StubAnalyzer) Analyze(ctx context.Context, message, detail, sourceLabel string) (*incidents.PatchSolution, error) {
	s.mu.Lock()
	s.calls++
	sol, err, delay, panicMsg, ignore, block := s.solution, s.err, s.delay, s.panicMsg, s.ignore, s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if delay > 0 {
		if ignore {
			time.Sleep(delay)
		} else {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	if sol == nil {
		return nil, nil
	}
	out := *sol
	return &out, nil
}

// ========================================
// Recording Reporter
// ========================================

// CapturedError is one error seen by RecordingReporter
type CapturedError struct {
	Err  error
	Tags map[string]string
}

// RecordingReporter is a telemetry reporter that keeps what it receives
type RecordingReporter struct {
	mu       sync.Mutex
	errors   []CapturedError
	messages []string
}

// NewRecordingReporter creates a new recording reporter
func NewRecordingReporter() *RecordingReporter {
	return &RecordingReporter{}
}

// CaptureError records err and its tags
func (r *RecordingReporter) CaptureError(err error, tags map[string]string) {
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	r.mu.Lock()
	r.errors = append(r.errors, CapturedError{Err: err, Tags: copied})
	r.mu.Unlock()
}

// CaptureMessage records msg
func (r *RecordingReporter) CaptureMessage(msg string, tags map[string]string) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

// Flush always succeeds
func (r *RecordingReporter) Flush(time.Duration) bool { return true }

// Enabled always reports true
func (r *RecordingReporter) Enabled() bool { return true }

// Errors returns the captured errors
func (r *RecordingReporter) Errors() []CapturedError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CapturedError(nil), r.errors...)
}

// Messages returns the captured messages
func (r *RecordingReporter) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// ========================================
// Change Recorder
// ========================================

// ChangeRecorder collects store changes delivered to a subscriber
type ChangeRecorder struct {
	mu      sync.Mutex
	changes []incidents.Change
}

// RecordChanges subscribes a recorder to store and unsubscribes on cleanup
func RecordChanges(t *testing.T, store incidents.Store) *ChangeRecorder {
	t.Helper()
	rec := &ChangeRecorder{}
	unsubscribe := store.Subscribe(func(c incidents.Change) {
		rec.mu.Lock()
		rec.changes = append(rec.changes, c)
		rec.mu.Unlock()
	})
	t.Cleanup(unsubscribe)
	return rec
}

// Changes returns the recorded changes in delivery order
func (r *ChangeRecorder) Changes() []incidents.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]incidents.Change(nil), r.changes...)
}

// Kinds returns the kinds of the recorded changes
func (r *ChangeRecorder) Kinds() []incidents.ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]incidents.ChangeKind, len(r.changes))
	for i, c := range r.changes {
		kinds[i] = c.Kind
	}
	return kinds
}

// ========================================
// Timing Helpers
// ========================================

// MustCompleteWithin fails the test if the function takes longer than the timeout
func MustCompleteWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		t.Fatalf("function did not complete within %v", timeout)
	}
}

// WaitFor polls cond until it returns true or timeout passes
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("%s: condition not met within %v", msg, timeout)
	}
}
