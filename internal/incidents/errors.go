package incidents

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation is returned for malformed input to a creation or mutation call
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced incident or record does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when a status change is not a legal successor
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidState is returned when an operation is not allowed in the current status
	ErrInvalidState = errors.New("invalid incident state")

	// ErrCollaborator is returned when the analysis collaborator fails or returns malformed data
	ErrCollaborator = errors.New("analysis collaborator failed")
)

// ValidationError lists the offending fields of a rejected input
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransitionError reports an attempted status change that is not allowed
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
