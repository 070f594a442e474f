package harness

import "sync/atomic"

// RunState is the state of a Driver.
type RunState uint32

const (
	// BootstrappingState connects and performs the seed exchange, retrying until the fail budget is spent.
	BootstrappingState RunState = iota
	// RunningState performs the escalating-length exchanges on the established session.
	RunningState
	// PassedState is terminal: every step up to the max test index succeeded within the fail budget.
	PassedState
	// FailedState is terminal: the fail budget ran out, the run was aborted or cancelled.
	FailedState
)

// String returns string representation of the state.
func (s RunState) String() string {
	switch s {
	case BootstrappingState:
		return "bootstrapping"
	case RunningState:
		return "running"
	case PassedState:
		return "passed"
	case FailedState:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is PassedState or FailedState.
func (s RunState) IsTerminal() bool { return s == PassedState || s == FailedState }

type atomicRunState struct {
	state atomic.Uint32
}

func (st *atomicRunState) Get() RunState {
	return RunState(st.state.Load())
}

func (st *atomicRunState) ToRunning() bool {
	return st.state.CompareAndSwap(uint32(BootstrappingState), uint32(RunningState))
}

func (st *atomicRunState) ToPassed() bool {
	return st.state.CompareAndSwap(uint32(RunningState), uint32(PassedState))
}

func (st *atomicRunState) ToFailed() bool {
	if st.state.CompareAndSwap(uint32(BootstrappingState), uint32(FailedState)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(RunningState), uint32(FailedState))
}
