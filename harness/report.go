package harness

import (
	"time"
)

// Verdict is the final result of a run.
type Verdict uint8

const (
	// VerdictFailed means the run did not pass.
	VerdictFailed Verdict = iota
	// VerdictPassed means every step up to the max test index succeeded within the fail budget.
	VerdictPassed
)

// String returns the console text of the verdict.
func (v Verdict) String() string {
	if v == VerdictPassed {
		return "Test passed"
	}

	return "Test failed"
}

// Report summarizes a finished run.
type Report struct {
	Verdict Verdict
	// Phase is the state the run was in when it ended: BootstrappingState when no
	// baseline exchange ever succeeded, RunningState otherwise.
	Phase RunState

	// TestIndex is the final test index; it exceeds the max test index on success.
	TestIndex int
	// FailBudget is the remaining fail budget.
	FailBudget int

	ConnectAttempts  int
	ConnectFailures  int
	Exchanges        int
	Successes        int
	ExchangeFailures int

	// TotalLatency, MinLatency and MaxLatency cover successful exchanges of the running state.
	TotalLatency time.Duration
	MinLatency   time.Duration
	MaxLatency   time.Duration

	// Err explains a failed verdict.
	Err error

	latencySamples int
}

// Passed reports whether the verdict is VerdictPassed.
func (r *Report) Passed() bool { return r.Verdict == VerdictPassed }

// String returns "Test passed" or "Test failed".
func (r *Report) String() string { return r.Verdict.String() }

// Samples returns the number of latency samples.
func (r *Report) Samples() int { return r.latencySamples }

// AverageLatency returns the mean latency of the recorded samples, or zero without samples.
func (r *Report) AverageLatency() time.Duration {
	if r.latencySamples == 0 {
		return 0
	}

	return r.TotalLatency / time.Duration(r.latencySamples)
}

func (r *Report) addLatency(d time.Duration) {
	if r.latencySamples == 0 || d < r.MinLatency {
		r.MinLatency = d
	}
	if d > r.MaxLatency {
		r.MaxLatency = d
	}
	r.TotalLatency += d
	r.latencySamples++
}
