// Package apperrors provides structured errors for the job-control client.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	// ErrAcquisition: the provider failed to hand out a control channel.
	ErrAcquisition = errors.New("channel acquisition failed")
	// ErrDispatch: a remote call failed before producing a pending result.
	ErrDispatch = errors.New("dispatch failed")
	// ErrJobFailed: a job's final result could not be materialized.
	ErrJobFailed = errors.New("job failed")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Op       string // Operation that failed (e.g., "rest.triggerSavepoint")
	JobID    string // Job the operation addressed, when known
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel and the cause to errors.Is/errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Acquisition creates an acquisition error for a failed channel grab.
func Acquisition(op string, cause error) error {
	return &Error{
		Sentinel: ErrAcquisition,
		Message:  fmt.Sprintf("%s: acquiring control channel: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Dispatch creates a dispatch error for a remote call that failed
// synchronously, before a pending result existed.
func Dispatch(op string, cause error) error {
	return &Error{
		Sentinel: ErrDispatch,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// JobFailed wraps a result-materialization failure with the job it
// belongs to.
func JobFailed(jobID string, cause error) error {
	return &Error{
		Sentinel: ErrJobFailed,
		Message:  fmt.Sprintf("job %s failed: %v", jobID, cause),
		JobID:    jobID,
		Cause:    cause,
	}
}
