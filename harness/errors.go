package harness

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("harness config is nil")

	// ErrAlreadyRun indicates that Run was called more than once on the same Driver.
	ErrAlreadyRun = errors.New("driver has already run")
)

var (
	// ErrBootstrapExhausted indicates that the fail budget ran out before the seed
	// exchange ever succeeded, so no baseline was established.
	ErrBootstrapExhausted = errors.New("failed to start communication test")

	// ErrBudgetExhausted indicates that the fail budget ran out after the run had started.
	ErrBudgetExhausted = errors.New("fail budget exhausted")

	// ErrAborted indicates that a failed exchange ended the run under FailureModeAbort.
	ErrAborted = errors.New("run aborted on failed exchange")
)
