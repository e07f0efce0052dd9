package models

// State enumerates the lifecycle stages of an executing action.
type State int

const (
	StateQueued State = iota
	StateStarted
	StateCompleted
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateStarted:
		return "started"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	default:
		return ""
	}
}

// IsTerminal reports whether no further transitions follow s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCanceled
}

// TaskState is a state transition reported by the executor for one action.
type TaskState struct {
	TaskID   string       // Executor-assigned task identifier
	Action   ActionRecord // Action the task executes
	State    State        // New state
	Attempts int          // Attempts made so far (0 while queued)
	Err      error        // Final error for failed tasks, or why a task was canceled
}
