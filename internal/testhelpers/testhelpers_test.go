package testhelpers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/debugops/debugops/internal/incidents"
)

func TestHTTPTestContext_NewAndExecute(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodGet, "/test", nil)

	if ctx.Recorder == nil || ctx.Request == nil {
		t.Fatal("recorder and request should be set")
	}
	if ctx.Request.Method != http.MethodGet {
		t.Errorf("expected method GET, got %s", ctx.Request.Method)
	}
}

func TestHTTPTestContext_WithBearerToken(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodGet, "/test", nil)
	ctx.WithBearerToken("my-token")

	expected := "Bearer my-token"
	if ctx.Request.Header.Get("Authorization") != expected {
		t.Errorf("expected %q, got %q", expected, ctx.Request.Header.Get("Authorization"))
	}
}

func TestHTTPTestContext_WithJSONBodyKeepsHeaders(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodPost, "/test", nil).
		WithBearerToken("tok").
		WithJSONBody(map[string]string{"key": "value"})

	if ctx.Request.Header.Get("Content-Type") != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ctx.Request.Header.Get("Content-Type"))
	}
	if ctx.Request.Header.Get("Authorization") != "Bearer tok" {
		t.Error("expected Authorization header to survive the body change")
	}
}

func TestHTTPTestContext_DecodeJSON(t *testing.T) {
	ctx := NewHTTPTestContext(t, http.MethodGet, "/test", nil)

	ctx.ExecuteFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	})

	var result map[string]string
	ctx.AssertStatus(http.StatusOK).AssertHeader("Content-Type", "application/json").DecodeJSON(&result)
	if result["result"] != "ok" {
		t.Errorf("expected result 'ok', got %q", result["result"])
	}
}

func TestStubAnalyzer_Default(t *testing.T) {
	stub := NewStubAnalyzer()

	sol, err := stub.Analyze(context.Background(), "m", "d", "s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol.Severity != incidents.SeverityHigh {
		t.Errorf("expected default severity HIGH, got %s", sol.Severity)
	}
	if stub.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", stub.Calls())
	}
}

func TestStubAnalyzer_Error(t *testing.T) {
	boom := errors.New("boom")
	stub := NewStubAnalyzer().WithError(boom)

	if _, err := stub.Analyze(context.Background(), "m", "d", "s"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestStubAnalyzer_DelayHonorsContext(t *testing.T) {
	stub := NewStubAnalyzer().WithDelay(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	MustCompleteWithin(t, time.Second, func() {
		if _, err := stub.Analyze(ctx, "m", "d", "s"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestStubAnalyzer_Blocking(t *testing.T) {
	stub := NewStubAnalyzer().Blocking()
	done := make(chan error, 1)
	go func() {
		_, err := stub.Analyze(context.Background(), "m", "d", "s")
		done <- err
	}()

	WaitFor(t, time.Second, func() bool { return stub.Calls() == 1 }, "analyze call")
	stub.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Release did not unblock Analyze")
	}
}

func TestRecordingReporter(t *testing.T) {
	r := NewRecordingReporter()
	tags := map[string]string{"context": "analysis"}
	r.CaptureError(errors.New("boom"), tags)
	tags["context"] = "changed"
	r.CaptureMessage("hello", nil)

	errs := r.Errors()
	if len(errs) != 1 || errs[0].Tags["context"] != "analysis" {
		t.Errorf("unexpected errors: %+v", errs)
	}
	if msgs := r.Messages(); len(msgs) != 1 || msgs[0] != "hello" {
		t.Errorf("unexpected messages: %v", msgs)
	}
}

func TestRecordChanges(t *testing.T) {
	store := incidents.NewMemoryStore(nil)
	rec := RecordChanges(t, store)

	inc := MustCreate(t, store, NewIncidentBuilder().Build())
	AssertStatus(t, store, inc.ID, incidents.StatusOpen)

	kinds := rec.Kinds()
	if len(kinds) != 1 || kinds[0] != incidents.ChangeIncidentCreated {
		t.Errorf("unexpected kinds: %v", kinds)
	}
}

func TestMustCompleteWithin_Success(t *testing.T) {
	mockT := &testing.T{}

	MustCompleteWithin(mockT, time.Second, func() {
		time.Sleep(10 * time.Millisecond)
	})

	if mockT.Failed() {
		t.Error("test should not have failed")
	}
}
