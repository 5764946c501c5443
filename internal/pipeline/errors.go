package pipeline

import (
	"errors"
	"fmt"
)

// ErrSnapshotIncomplete is the cause of a fatal fetch_snapshot whose
// snapshot reported its own fetch as failed.
var ErrSnapshotIncomplete = errors.New("repository snapshot incomplete")

// TransientStageError is a retryable stage that failed on every attempt.
type TransientStageError struct {
	Stage    Stage
	Attempts int
	Err      error
}

func (e *TransientStageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *TransientStageError) Unwrap() error { return e.Err }

// OptionalStageError is a non-essential result that could not be produced.
// The stage is reported skipped and downstream treats it as absent.
type OptionalStageError struct {
	Stage Stage
	Err   error
}

func (e *OptionalStageError) Error() string {
	return fmt.Sprintf("optional stage %s skipped: %v", e.Stage, e.Err)
}

func (e *OptionalStageError) Unwrap() error { return e.Err }

// FatalStageError means the snapshot could not be obtained. It shapes the
// output into an error response; build_output still runs.
type FatalStageError struct {
	Stage Stage
	Err   error
}

func (e *FatalStageError) Error() string {
	return fmt.Sprintf("fatal: stage %s: %v", e.Stage, e.Err)
}

func (e *FatalStageError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalStageError.
func IsFatal(err error) bool {
	var fe *FatalStageError
	return errors.As(err, &fe)
}
