package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAcquisition(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("control plane unreachable")
	err := Acquisition("jobclient.status", cause)

	if !errors.Is(err, ErrAcquisition) {
		t.Error("expected error to match ErrAcquisition")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "jobclient.status" {
		t.Errorf("expected op 'jobclient.status', got %q", appErr.Op)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestDispatch(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("encode request: bad payload")
	err := Dispatch("rest.sendCoordinationRequest", cause)

	if !errors.Is(err, ErrDispatch) {
		t.Error("expected error to match ErrDispatch")
	}
	if err.Error() != "rest.sendCoordinationRequest: encode request: bad payload" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestJobFailed(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("decode accumulator: unexpected EOF")
	err := JobFailed("abc123", cause)

	if !errors.Is(err, ErrJobFailed) {
		t.Error("expected error to match ErrJobFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the underlying cause")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.JobID != "abc123" {
		t.Errorf("expected job ID 'abc123', got %q", appErr.JobID)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	// Ensure errors.Is works through fmt.Errorf wrapping
	original := Acquisition("op", fmt.Errorf("boom"))
	wrapped := fmt.Errorf("client error: %w", original)
	doubleWrapped := fmt.Errorf("caller error: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrAcquisition) {
		t.Error("expected errors.Is to find ErrAcquisition through multiple wraps")
	}
}
