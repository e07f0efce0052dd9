package tasks

import (
	"fmt"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// ProgressUpdate represents a progress event for one executing task.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase    Phase             // Operation phase
	TaskID   string            // Task the update belongs to
	Resource models.ResourceID // Resource the task operates on
	Kind     models.ActionKind // Download or removal
	Attempt  int               // Current attempt, starting at 1
	Done     int64             // Bytes fetched so far
	Total    int64             // Bytes expected, 0 when unknown
	Message  string            // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseStarted
	PhaseFetching
	PhaseRetrying
	PhaseCompleted
	PhaseFailed
	PhaseCanceled
)

func (p Phase) String() string {
	switch p {
	case PhaseQueued:
		return "queued"
	case PhaseStarted:
		return "started"
	case PhaseFetching:
		return "fetching"
	case PhaseRetrying:
		return "retrying"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	case PhaseCanceled:
		return "canceled"
	default:
		return ""
	}
}

func phaseOf(s models.State) Phase {
	switch s {
	case models.StateStarted:
		return PhaseStarted
	case models.StateCompleted:
		return PhaseCompleted
	case models.StateFailed:
		return PhaseFailed
	case models.StateCanceled:
		return PhaseCanceled
	default:
		return PhaseQueued
	}
}

func baseUpdate(t *task, phase Phase) ProgressUpdate {
	return ProgressUpdate{
		Phase:    phase,
		TaskID:   t.id,
		Resource: t.action.Resource,
		Kind:     t.action.Kind,
		Attempt:  t.attempts,
	}
}

func stateUpdate(t *task, s models.State, err error) ProgressUpdate {
	u := baseUpdate(t, phaseOf(s))
	switch s {
	case models.StateFailed:
		u.Message = fmt.Sprintf("✗ %s %s: %v", t.action.Kind, t.action.Name(), err)
	case models.StateCompleted:
		u.Message = fmt.Sprintf("✓ %s %s", t.action.Kind, t.action.Name())
	default:
		u.Message = fmt.Sprintf("%s %s: %s", t.action.Kind, t.action.Name(), s)
	}
	return u
}

func fetchingUpdate(t *task, done, total int64) ProgressUpdate {
	u := baseUpdate(t, PhaseFetching)
	u.Done, u.Total = done, total
	if total > 0 {
		u.Message = fmt.Sprintf("%s: %s / %s", t.action.Name(), shared.FormatBytes(done), shared.FormatBytes(total))
	} else {
		u.Message = fmt.Sprintf("%s: %s", t.action.Name(), shared.FormatBytes(done))
	}
	return u
}

func retryingUpdate(t *task, err error) ProgressUpdate {
	u := baseUpdate(t, PhaseRetrying)
	u.Message = fmt.Sprintf("Retrying %s (attempt %d): %v", t.action.Name(), t.attempts+1, err)
	return u
}
