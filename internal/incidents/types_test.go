package incidents

import (
	"errors"
	"testing"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusOpen, StatusAnalyzing, StatusPatchProposed, StatusResolved}
	legal := map[[2]Status]bool{
		{StatusOpen, StatusAnalyzing}:          true,
		{StatusAnalyzing, StatusPatchProposed}: true,
		{StatusAnalyzing, StatusOpen}:          true,
		{StatusPatchProposed, StatusResolved}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]Status{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusOpen, StatusAnalyzing, StatusPatchProposed, StatusResolved} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if Status("CLOSED").Valid() {
		t.Error("expected CLOSED to be invalid")
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  Severity
		ok    bool
	}{
		{"LOW", SeverityLow, true},
		{"medium", SeverityMedium, true},
		{" High ", SeverityHigh, true},
		{"Critical", SeverityCritical, true},
		{"urgent", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseSeverity(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseSeverity(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(StatusOpen, StatusAnalyzing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := CheckTransition(StatusOpen, StatusResolved)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.From != StatusOpen || te.To != StatusResolved {
		t.Errorf("unexpected transition error: %#v", err)
	}
}

func TestValidationError(t *testing.T) {
	err := ValidateNewIncident(NewIncident{Message: "  ", Detail: ""})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if _, ok := ve.Fields["message"]; !ok {
		t.Error("expected message field error")
	}
	if _, ok := ve.Fields["detail"]; !ok {
		t.Error("expected detail field error")
	}
	if got := err.Error(); got != "validation failed: detail is required, message is required" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestValidateNewEvent(t *testing.T) {
	if err := ValidateNewEvent(NewEvent{Step: "Log Analysis", Outcome: OutcomeSuccess}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateNewEvent(NewEvent{Step: "", Outcome: OutcomeSuccess}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for empty step, got %v", err)
	}
	if err := ValidateNewEvent(NewEvent{Step: "x", Outcome: "done"}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown outcome, got %v", err)
	}
}
