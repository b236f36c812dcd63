package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON_ValidInput(t *testing.T) {
	r := newRequest(`{"message":"ReferenceError","detail":"at Header.tsx:42","source_label":"src/Header.tsx"}`)

	var dst CreateIncidentRequest
	if err := DecodeJSON(r, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Message != "ReferenceError" {
		t.Errorf("message = %q, want %q", dst.Message, "ReferenceError")
	}
	if dst.SourceLabel != "src/Header.tsx" {
		t.Errorf("source_label = %q, want %q", dst.SourceLabel, "src/Header.tsx")
	}
}

func TestDecodeJSON_NilBody(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/test", nil)

	var dst struct{}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for nil body")
	}
	if !errors.Is(err, ErrEmptyBody) {
		t.Errorf("error = %v, want ErrEmptyBody", err)
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	r := newRequest("")

	var dst struct{}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for empty body")
	}
	if !errors.Is(err, ErrEmptyBody) {
		t.Errorf("error = %v, want ErrEmptyBody", err)
	}
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	r := newRequest(`{invalid}`)

	var dst struct{}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !strings.Contains(err.Error(), "malformed JSON") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "malformed JSON")
	}
}

func TestDecodeJSON_TruncatedJSON(t *testing.T) {
	r := newRequest(`{"message":`)

	var dst CreateIncidentRequest
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if !strings.Contains(err.Error(), "malformed JSON") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "malformed JSON")
	}
	if errors.Is(err, ErrEmptyBody) {
		t.Error("truncated JSON must not be reported as an empty body")
	}
}

func TestDecodeJSON_TypeMismatch(t *testing.T) {
	r := newRequest(`{"value":"not_a_number"}`)

	var dst struct {
		Value int `json:"value"`
	}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for type mismatch")
	}
	if !strings.Contains(err.Error(), "invalid value") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "invalid value")
	}
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	r := newRequest(`{"name":"test","extra":"field"}`)

	var dst struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unknown field")
	}
}

func TestDecodeJSON_OversizedBody(t *testing.T) {
	// Create a body that exceeds MaxBodySize (1MB)
	huge := `{"data":"` + strings.Repeat("x", MaxBodySize+1) + `"}`
	r := newRequest(huge)

	var dst struct {
		Data string `json:"data"`
	}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	if !strings.Contains(err.Error(), "exceeds maximum size") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "exceeds maximum size")
	}
}

// newRequest creates an http.Request with the given JSON body.
func newRequest(body string) *http.Request {
	r, _ := http.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestDecodeOptionalJSON(t *testing.T) {
	var req AnalyzeRequest
	r := httptest.NewRequest(http.MethodPost, "/api/incidents/x/analyze", nil)
	if err := DecodeOptionalJSON(r, &req); err != nil {
		t.Fatalf("empty body should be accepted: %v", err)
	}
	if req.Wait {
		t.Error("expected zero value for an empty body")
	}

	r = httptest.NewRequest(http.MethodPost, "/api/incidents/x/analyze", strings.NewReader(`{"wait":true,"timeout_seconds":5}`))
	if err := DecodeOptionalJSON(r, &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Wait || req.TimeoutSeconds != 5 {
		t.Errorf("unexpected request: %+v", req)
	}

	// streamed body of unknown length holding only whitespace
	req = AnalyzeRequest{}
	r = httptest.NewRequest(http.MethodPost, "/api/incidents/x/analyze", strings.NewReader("  \n"))
	r.ContentLength = -1
	if err := DecodeOptionalJSON(r, &req); err != nil {
		t.Fatalf("whitespace body should be accepted: %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/api/incidents/x/analyze", strings.NewReader(`{"wait":`))
	if err := DecodeOptionalJSON(r, &req); err == nil || !strings.Contains(err.Error(), "malformed JSON") {
		t.Errorf("expected a malformed JSON error, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/api/incidents/x/analyze", strings.NewReader(`{"wait":"yes"}`))
	if err := DecodeOptionalJSON(r, &req); err == nil {
		t.Error("expected error for a type mismatch")
	}
}
