package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a project, node, version or change request does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a proposed change would violate a graph invariant.
	ErrValidation = errors.New("validation failed")

	// ErrIllegalState is returned for forbidden change-request lifecycle transitions.
	ErrIllegalState = errors.New("illegal state transition")

	// ErrAlreadyApplied is returned when applying a change request twice.
	ErrAlreadyApplied = fmt.Errorf("change request already applied: %w", ErrIllegalState)

	// ErrCannotDeleteApplied is returned when deleting an applied change request.
	ErrCannotDeleteApplied = fmt.Errorf("cannot delete applied change request: %w", ErrIllegalState)

	// ErrSchemaMismatch is returned for layered-only operations on a legacy flat project.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrCorrupt is returned when a stored snapshot fails its integrity check.
	ErrCorrupt = errors.New("corrupt snapshot")
)

// ValidationFailure describes why a graph was rejected.
type ValidationFailure struct {
	// Layer is the logical layer or check that failed (e.g. "specification", "mappings").
	Layer string

	// Code is a machine-readable error identifier (e.g. "CYCLE_DETECTED").
	Code string

	// Message is the human-readable diagnostic.
	Message string

	// Cycle is the offending cycle, closed on its first node, when one was found.
	Cycle []string

	// Errors holds additional diagnostics (mapping validation reports several).
	Errors []string
}

func (f *ValidationFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "validation failed in %s: %s", f.Layer, f.Message)
	if len(f.Errors) > 1 {
		fmt.Fprintf(&b, " (+%d more)", len(f.Errors)-1)
	}
	return b.String()
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationFailure.
func (f *ValidationFailure) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundf builds an ErrNotFound-wrapping error.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
