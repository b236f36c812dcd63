package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/debugops/debugops/internal/incidents"
)

type rawSolution struct {
	RootCause     *string   `json:"root_cause"`
	Severity      *string   `json:"severity"`
	FilesToModify *[]string `json:"files_to_modify"`
	Patch         *string   `json:"patch"`
	Explanation   *string   `json:"explanation"`
	NextSteps     *[]string `json:"next_steps"`
}

// ParseSolution decodes a model reply into a PatchSolution.
// A reply wrapped in a markdown code fence is accepted. Every field must be
// present, and severity must be one of the four levels (any case).
func ParseSolution(text string) (*incidents.PatchSolution, error) {
	body := stripCodeFence(text)
	if body == "" {
		return nil, ErrEmptyResponse
	}

	var raw rawSolution
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var missing []string
	if raw.RootCause == nil || strings.TrimSpace(*raw.RootCause) == "" {
		missing = append(missing, "root_cause")
	}
	if raw.Severity == nil {
		missing = append(missing, "severity")
	}
	if raw.FilesToModify == nil {
		missing = append(missing, "files_to_modify")
	}
	if raw.Patch == nil {
		missing = append(missing, "patch")
	}
	if raw.Explanation == nil {
		missing = append(missing, "explanation")
	}
	if raw.NextSteps == nil {
		missing = append(missing, "next_steps")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}

	severity, ok := incidents.ParseSeverity(*raw.Severity)
	if !ok {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrMalformedResponse, *raw.Severity)
	}

	return &incidents.PatchSolution{
		RootCause:     *raw.RootCause,
		Severity:      severity,
		FilesToModify: *raw.FilesToModify,
		PatchText:     *raw.Patch,
		Explanation:   *raw.Explanation,
		NextSteps:     *raw.NextSteps,
	}, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
