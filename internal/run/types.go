package run

import (
	"maps"
	"time"
)

// State represents the lifecycle state of a tracked run.
type State string

const (
	// StateRunning indicates the run is actively executing.
	StateRunning State = "running"

	// StatePaused indicates the run is suspended and may be resumed.
	StatePaused State = "paused"

	// StateCompleted indicates the run finished successfully.
	StateCompleted State = "completed"

	// StateFailed indicates the run ended with an error.
	StateFailed State = "failed"

	// StateCancelled indicates the run was cancelled before finishing.
	StateCancelled State = "cancelled"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if this state represents a final state.
// Terminal runs accept no further transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// IsActive returns true for states that still accept transitions.
func (s State) IsActive() bool {
	return s == StateRunning || s == StatePaused
}

// ContextKeyRunID is the reserved context field holding the run's own id.
// Start always sets it; any caller-supplied value for it is discarded.
const ContextKeyRunID = "runId"

// Run is one tracked long-lived operation. Snapshots of it are handed out
// by the Tracker's queries; mutating a snapshot has no effect on the table.
type Run struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Name is the human-readable title given at Start.
	Name string `json:"name"`

	// Description optionally elaborates on the name.
	Description string `json:"description,omitempty"`

	// Context carries correlation fields such as a session id, worktree id,
	// or issue number. It is fixed at Start; the ContextKeyRunID field
	// always holds ID.
	Context map[string]string `json:"context,omitempty"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// Progress is the completion fraction in [0, 1].
	Progress float64 `json:"progress"`

	// Message is the most recent progress message.
	Message string `json:"message,omitempty"`

	// StartedAt is when the run was started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Duration is the wall time from StartedAt to the terminal transition.
	Duration time.Duration `json:"duration,omitempty"`

	// Error holds the failure message of a failed run.
	Error string `json:"error,omitempty"`

	// Reason records why the run was paused or cancelled.
	Reason string `json:"reason,omitempty"`
}

// snapshot returns a copy safe to hand out. The context map is cloned so
// callers cannot mutate the table's copy; CompletedAt points at a value
// that is written exactly once, so sharing it is safe.
func (r *Run) snapshot() Run {
	cp := *r
	cp.Context = maps.Clone(r.Context)
	return cp
}

// Status is a snapshot of the tracker's current state counts.
type Status struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
