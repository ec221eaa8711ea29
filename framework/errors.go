package framework

import (
	"errors"
	"fmt"
)

// ErrAlreadyFinalized is returned by ReportBuilder methods used after
// Finalize has succeeded.
var ErrAlreadyFinalized = errors.New("report has already been finalized")

// AcquisitionError means a prerequisite resource could not be provided. The
// owning case becomes errored; the run continues.
type AcquisitionError struct {
	Resource string
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("failed to acquire %s: %s", e.Resource, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// AssertionFailure means the test's own logic detected a defect. It maps to
// the failed status, as opposed to ExecutionError's errored.
type AssertionFailure struct {
	Err error
}

func (e *AssertionFailure) Error() string {
	return fmt.Sprintf("assertion failed: %s", e.Err)
}

func (e *AssertionFailure) Unwrap() error { return e.Err }

// ExecutionError means something broke around the test rather than in its
// assertions: an unexpected panic, a returned error, or a timeout. It maps to
// the errored status.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("unexpected fault during test: %s", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// CaptureError means diagnostic collection itself failed. It is recorded as
// an outcome annotation and never displaces the original status.
type CaptureError struct {
	Source string
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("diagnostic capture failed: %s", e.Err)
	}
	return fmt.Sprintf("diagnostic capture (%s) failed: %s", e.Source, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// TeardownError means a cleanup step failed. Recorded as an annotation; it
// never suppresses the original status and never stops remaining cleanup.
type TeardownError struct {
	Stage string
	Err   error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("cleanup of %s failed: %s", e.Stage, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }

// RunFatalError means the orchestrator's own state is corrupted and the
// remaining schedule was aborted. It is the only error Run returns.
type RunFatalError struct {
	Err error
}

func (e *RunFatalError) Error() string {
	return fmt.Sprintf("fatal orchestrator error: %s", e.Err)
}

func (e *RunFatalError) Unwrap() error { return e.Err }

// IncompleteRunError is returned by ReportBuilder.Finalize when some
// scheduled cases have not reached a terminal state.
type IncompleteRunError struct {
	Recorded  int
	Scheduled int
}

func (e *IncompleteRunError) Error() string {
	return fmt.Sprintf("run is incomplete: %d of %d outcomes recorded", e.Recorded, e.Scheduled)
}
