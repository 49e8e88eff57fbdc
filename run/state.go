package run

import (
	"fmt"
	"sync"
)

// State is the lifecycle state of one run.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelling
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelling:
		return "cancelling"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// transitions is the legal edge set. Cancelling is terminal-bound: it may
// only resolve to Cancelled, never back to Streaming. Completed and Failed
// are reachable only from Streaming.
var transitions = map[State][]State{
	StateIdle:       {StateLaunching},
	StateLaunching:  {StateStreaming, StateFailed, StateCancelling},
	StateStreaming:  {StateCompleted, StateFailed, StateCancelling},
	StateCancelling: {StateCancelled},
}

// stateMachine guards run state transitions.
type stateMachine struct {
	mu    sync.Mutex
	state State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateIdle}
}

func (m *stateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// to attempts the transition to next, failing on illegal edges.
func (m *stateMachine) to(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid run state transition %s -> %s", m.state, next)
}
