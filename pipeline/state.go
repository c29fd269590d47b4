package pipeline

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// State is one point in the pipeline's lifecycle.
type State uint32

const (
	// Stopped is the initial and final state: no device or session
	// resources are active.
	Stopped State = iota
	// Starting means Start has been called and setup (codec creation,
	// device open) is in progress.
	Starting
	// Running means both ticks may be driven.
	Running
	// Stopping means Stop has been called and teardown is in progress.
	Stopping
	// Error is entered from any state on a fatal device or setup
	// failure and requires an explicit Stop before the pipeline can be
	// reused.
	Error
)

// String renders a State for logging.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// StateChangeFunc is invoked after every successful state transition.
type StateChangeFunc func(old, new State)

// stateMachine guards the pipeline's lifecycle state behind a single
// lock and notifies an optional callback on every change, mirroring the
// teacher's Call.SetState pattern.
type stateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange StateChangeFunc
}

func newStateMachine(onChange StateChangeFunc) *stateMachine {
	return &stateMachine{current: Stopped, onChange: onChange}
}

func (m *stateMachine) get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// transition moves to next if the move from the current state is legal,
// returning ErrInvalidTransition otherwise. Error is reachable from any
// state except Error itself; Stopped is reachable from Stopping, from
// Error, and directly from Starting.
func (m *stateMachine) transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !legalTransition(m.current, next) {
		return ErrInvalidTransition
	}

	old := m.current
	m.current = next

	logrus.WithFields(logrus.Fields{
		"function":  "pipeline.stateMachine.transition",
		"old_state": old.String(),
		"new_state": next.String(),
	}).Info("pipeline state changed")

	if m.onChange != nil {
		m.onChange(old, next)
	}
	return nil
}

func legalTransition(from, to State) bool {
	if to == Error {
		return from != Error
	}
	switch from {
	case Stopped:
		return to == Starting
	case Starting:
		return to == Running || to == Stopped
	case Running:
		return to == Stopping
	case Stopping:
		return to == Stopped
	case Error:
		return to == Stopped
	default:
		return false
	}
}
