package utils

import (
	"strings"
	"testing"
)

func TestValidateIncidentID(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		wantError bool
	}{
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", false},
		{"valid uuid uppercase", "550E8400-E29B-41D4-A716-446655440000", false},
		{"empty", "", true},
		{"too short", "550e8400-e29b-41d4-a716", true},
		{"missing dashes", "550e8400e29b41d4a716446655440000", true},
		{"invalid chars", "550g8400-e29b-41d4-a716-446655440000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIncidentID(tt.id)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateIncidentID(%q) error = %v; wantError = %v", tt.id, err, tt.wantError)
			}
		})
	}
}

func TestSanitizeSourceLabel(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		expected string
	}{
		{"file path", "src/components/Header.tsx", "src/components/Header.tsx"},
		{"well-known label", "voice_transcript", "voice_transcript"},
		{"control chars", "server\x00.log\n", "server.log"},
		{"surrounding space", "  data.csv ", "data.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeSourceLabel(tt.label); got != tt.expected {
				t.Errorf("SanitizeSourceLabel(%q) = %q; want %q", tt.label, got, tt.expected)
			}
		})
	}
}

func TestSanitizeSourceLabel_LongPath(t *testing.T) {
	long := strings.Repeat("dir/", 100) + "main.go"
	got := SanitizeSourceLabel(long)

	if len(got) > maxSourceLabelLen {
		t.Errorf("result too long: %d", len(got))
	}
	if !strings.HasSuffix(got, "main.go") {
		t.Errorf("expected the file name to be kept, got %q", got)
	}
}

func TestEscapeForLogging(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{"simple", "hello", 10, "hello"},
		{"with newline", "hello\nworld", 20, "hello\\nworld"},
		{"truncated", "hello world this is long", 10, "hello worl..."},
		{"all escapes", "a\nb\rc\td", 20, "a\\nb\\rc\\td"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EscapeForLogging(tt.text, tt.maxLen)
			if result != tt.expected {
				t.Errorf("EscapeForLogging(%q, %d) = %q; want %q", tt.text, tt.maxLen, result, tt.expected)
			}
		})
	}
}
