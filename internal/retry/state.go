package retry

import "fmt"

// State is a state of the retry loop.
type State int

const (
	StateStart State = iota
	StateAttempt
	StateCheckpoint
	StateDecision
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateAttempt:
		return "attempt"
	case StateCheckpoint:
		return "checkpoint"
	case StateDecision:
		return "decision"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateStart:
		return to == StateDecision
	case StateAttempt:
		return to == StateCheckpoint
	case StateCheckpoint:
		return to == StateDecision
	case StateDecision:
		return to == StateAttempt || to == StateDone
	default:
		return false
	}
}

// Status is the terminal result of a run.
type Status string

const (
	// StatusSuccess: every entity was exported.
	StatusSuccess Status = "success"
	// StatusPartial: attempts ran out, or the run was stopped, with
	// entities still failing.
	StatusPartial Status = "partial"
)
