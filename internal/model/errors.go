// Package model provides data models for the WOMS rules engine.
package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidMetricInput indicates missing or non-numeric raw values for the record kind.
	ErrInvalidMetricInput = errors.New("invalid metric input")

	// ErrInvalidTransition indicates an alert lifecycle call that is not legal from the current status.
	ErrInvalidTransition = errors.New("invalid alert transition")

	// ErrAlertNotFound indicates a missing alert.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrMetricNotFound indicates a missing metric record.
	ErrMetricNotFound = errors.New("metric record not found")

	// ErrDuplicateOpenAlert is returned by stores when an open alert already
	// exists for the same subject, type and title.
	ErrDuplicateOpenAlert = errors.New("open alert already exists")
)

// FieldError describes one rejected submission field.
type FieldError struct {
	Field   string // Field path (e.g., "values.planned")
	Message string // User-friendly reason
}

// InputError collects the field errors of a rejected submission.
// It matches ErrInvalidMetricInput with errors.Is.
type InputError struct {
	Fields []FieldError
}

// Error implements the error interface.
func (e *InputError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrInvalidMetricInput.Error()
	}
	var sb strings.Builder
	sb.WriteString(ErrInvalidMetricInput.Error())
	sb.WriteString(":")
	for _, f := range e.Fields {
		sb.WriteString(fmt.Sprintf("\n  - %s: %s", f.Field, f.Message))
	}
	return sb.String()
}

// Is makes errors.Is(err, ErrInvalidMetricInput) succeed.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidMetricInput
}

// TransitionError reports a rejected lifecycle transition.
type TransitionError struct {
	AlertID string
	From    AlertStatus
	Action  string
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s alert %s in status %s", ErrInvalidTransition, e.Action, e.AlertID, e.From)
}

// Is makes errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
