package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var uuidPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

// maxSourceLabelLen matches the source_label column size
const maxSourceLabelLen = 255

// ValidateIncidentID validates that an incident id is a well-formed UUID
func ValidateIncidentID(id string) error {
	if id == "" {
		return fmt.Errorf("incident id is required")
	}
	if !uuidPattern.MatchString(strings.ToLower(id)) {
		return fmt.Errorf("invalid incident id format")
	}
	return nil
}

// SanitizeSourceLabel drops control characters and limits the label length.
// Path separators are kept since labels are often file paths.
func SanitizeSourceLabel(label string) string {
	var sanitized strings.Builder
	for _, r := range label {
		if unicode.IsPrint(r) {
			sanitized.WriteRune(r)
		}
	}
	label = strings.TrimSpace(sanitized.String())

	if len(label) > maxSourceLabelLen {
		// keep the tail: the file name is the informative part of a path
		label = label[len(label)-maxSourceLabelLen:]
	}
	return label
}

// EscapeForLogging escapes user supplied content for single-line logging
func EscapeForLogging(text string, maxLen int) string {
	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}

	text = strings.ReplaceAll(text, "\n", "\\n")
	text = strings.ReplaceAll(text, "\r", "\\r")
	text = strings.ReplaceAll(text, "\t", "\\t")

	return text
}
