/*
errors.go - Error taxonomy for the accounting engine

PURPOSE:
  Three kinds of failure, all of which abort the enclosing transaction:

  1. ValidationError - bad user input (missing fields, reversed range,
     fractional hours, insufficient quota at submission). Returned with
     field-level detail; nothing is persisted.
  2. BusinessError - a state-machine guard refused the transition
     (e.g. canceling an approved request that already started). Surfaced
     as a user-facing message; no state change.
  3. ConsistencyError - an internal invariant broke (e.g. the allocator
     cannot find a bucket for a day it claims is covered). A defect:
     logged, never shown as routine validation.

USAGE:
  switch {
  case leave.IsValidation(err):  // 422 to the caller
  case leave.IsBusiness(err):    // 409 to the caller
  case leave.IsNotFound(err):    // 404
  default:                       // 500, log as defect
  }
*/
package leave

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRequestNotFound is returned when no live request has the key.
	ErrRequestNotFound = errors.New("request not found")

	// ErrBucketNotFound is returned when a referenced bucket doesn't exist.
	ErrBucketNotFound = errors.New("quota bucket not found")

	// ErrEmployeeNotFound is returned when the directory has no such id.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrInsufficientHours is returned when eligible buckets cannot cover
	// a request. Wrapped by InsufficientHoursError with detail.
	ErrInsufficientHours = errors.New("insufficient usable hours")

	// ErrConcurrentModification is returned when the optimistic version
	// check on a bucket write fails. Retryable.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrOverlappingWindow is returned when a grant's validity window
	// overlaps an existing bucket for the same employee and type.
	ErrOverlappingWindow = errors.New("overlapping bucket validity window")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError carries field-level input problems.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, msg string) *ValidationError {
	e.Fields[field] = msg
	return e
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InsufficientHoursError reports a quota shortfall for one day.
type InsufficientHoursError struct {
	EmployeeID string
	LeaveType  LeaveType
	Date       string // "2006-01-02"
	Requested  int
	Available  int
}

func (e *InsufficientHoursError) Error() string {
	return fmt.Sprintf("insufficient usable hours for %s on %s: requested %d, available %d",
		e.LeaveType, e.Date, e.Requested, e.Available)
}

func (e *InsufficientHoursError) Unwrap() error { return ErrInsufficientHours }

// BusinessError is a state-machine guard failure: the transition is not
// permitted from the request's current state.
type BusinessError struct {
	Op     string // "approve", "reject", "cancel", "revise"
	Status Status // status at the time of the attempt
	Reason string
}

func (e *BusinessError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s request in status %q: %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("cannot %s request in status %q", e.Op, e.Status)
}

// ConsistencyError is an internal invariant violation. Treat as a defect.
type ConsistencyError struct {
	Op     string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation in %s: %s", e.Op, e.Detail)
}

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// IsValidation reports whether the error is bad user input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInsufficientHours) ||
		errors.Is(err, ErrOverlappingWindow)
}

// IsBusiness reports whether the error is a refused transition.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// IsConsistency reports whether the error is an internal invariant breach.
func IsConsistency(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrBucketNotFound) ||
		errors.Is(err, ErrEmployeeNotFound)
}

// IsRetryable reports whether the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
