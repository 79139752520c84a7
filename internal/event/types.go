// Package event defines the closed set of event types emitted by the vitals
// engine. These events let external collaborators (IPC bridges, UIs, log
// sinks) observe run lifecycle and session state changes without direct
// dependencies on the tracker or classifier.
package event

import (
	"maps"
	"time"
)

// Event type identifiers. These strings are the external contract: bridges
// and subscribers key off them, so they never change between releases.
const (
	TypeRunStarted          = "run:started"
	TypeRunProgress         = "run:progress"
	TypeRunPaused           = "run:paused"
	TypeRunResumed          = "run:resumed"
	TypeRunCompleted        = "run:completed"
	TypeRunFailed           = "run:failed"
	TypeRunCancelled        = "run:cancelled"
	TypeSessionStateChanged = "session:state-changed"
)

// Event is the interface that all events must implement.
// It provides a common way to identify, timestamp, and correlate events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category:action" (e.g., "run:started", "session:state-changed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// Context returns a copy of the correlation context attached to the
	// event (run context or session context). An event created without
	// context returns nil; ranging over a nil map is safe.
	Context() map[string]string
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
	context   map[string]string
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// Context returns a copy of the correlation context. Events are immutable
// value objects; handing out a copy keeps them that way.
func (e baseEvent) Context() map[string]string { return maps.Clone(e.context) }

// newBaseEvent creates a baseEvent with the current time and a private copy
// of the supplied correlation context.
func newBaseEvent(eventType string, ctx map[string]string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
		context:   maps.Clone(ctx),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted when a run is created and enters the running state.
type RunStartedEvent struct {
	baseEvent
	RunID       string `json:"runId"`                 // Unique identifier for the run
	Name        string `json:"name"`                  // Human-readable run name
	Description string `json:"description,omitempty"` // Optional longer description
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID, name, description string, ctx map[string]string) RunStartedEvent {
	return RunStartedEvent{
		baseEvent:   newBaseEvent(TypeRunStarted, ctx),
		RunID:       runID,
		Name:        name,
		Description: description,
	}
}

// RunProgressEvent is emitted when a run reports a progress update.
type RunProgressEvent struct {
	baseEvent
	RunID    string  `json:"runId"`             // Run reporting progress
	Progress float64 `json:"progress"`          // Fraction complete in [0, 1]
	Message  string  `json:"message,omitempty"` // Optional status message
}

// NewRunProgressEvent creates a RunProgressEvent.
func NewRunProgressEvent(runID string, progress float64, message string, ctx map[string]string) RunProgressEvent {
	return RunProgressEvent{
		baseEvent: newBaseEvent(TypeRunProgress, ctx),
		RunID:     runID,
		Progress:  progress,
		Message:   message,
	}
}

// RunPausedEvent is emitted when a running run is paused.
type RunPausedEvent struct {
	baseEvent
	RunID  string `json:"runId"`            // Run that was paused
	Reason string `json:"reason,omitempty"` // Optional reason for pausing
}

// NewRunPausedEvent creates a RunPausedEvent.
func NewRunPausedEvent(runID, reason string, ctx map[string]string) RunPausedEvent {
	return RunPausedEvent{
		baseEvent: newBaseEvent(TypeRunPaused, ctx),
		RunID:     runID,
		Reason:    reason,
	}
}

// RunResumedEvent is emitted when a paused run resumes running.
type RunResumedEvent struct {
	baseEvent
	RunID string `json:"runId"` // Run that resumed
}

// NewRunResumedEvent creates a RunResumedEvent.
func NewRunResumedEvent(runID string, ctx map[string]string) RunResumedEvent {
	return RunResumedEvent{
		baseEvent: newBaseEvent(TypeRunResumed, ctx),
		RunID:     runID,
	}
}

// RunCompletedEvent is emitted when a run transitions to the completed state.
type RunCompletedEvent struct {
	baseEvent
	RunID    string        `json:"runId"`    // Run that completed
	Duration time.Duration `json:"duration"` // Total wall-clock time from start
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID string, duration time.Duration, ctx map[string]string) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent: newBaseEvent(TypeRunCompleted, ctx),
		RunID:     runID,
		Duration:  duration,
	}
}

// RunFailedEvent is emitted when a run transitions to the failed state.
type RunFailedEvent struct {
	baseEvent
	RunID    string        `json:"runId"`    // Run that failed
	Error    string        `json:"error"`    // Error message describing the failure
	Duration time.Duration `json:"duration"` // Total wall-clock time from start
}

// NewRunFailedEvent creates a RunFailedEvent.
func NewRunFailedEvent(runID, errMsg string, duration time.Duration, ctx map[string]string) RunFailedEvent {
	return RunFailedEvent{
		baseEvent: newBaseEvent(TypeRunFailed, ctx),
		RunID:     runID,
		Error:     errMsg,
		Duration:  duration,
	}
}

// RunCancelledEvent is emitted when a run transitions to the cancelled state.
type RunCancelledEvent struct {
	baseEvent
	RunID    string        `json:"runId"`            // Run that was cancelled
	Reason   string        `json:"reason,omitempty"` // Optional reason for cancellation
	Duration time.Duration `json:"duration"`         // Total wall-clock time from start
}

// NewRunCancelledEvent creates a RunCancelledEvent.
func NewRunCancelledEvent(runID, reason string, duration time.Duration, ctx map[string]string) RunCancelledEvent {
	return RunCancelledEvent{
		baseEvent: newBaseEvent(TypeRunCancelled, ctx),
		RunID:     runID,
		Reason:    reason,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionStateChangedEvent is emitted when the classifier detects that an
// agent session moved to a different activity state. It is only published on
// actual transitions, never for chunks that leave the state unchanged.
type SessionStateChangedEvent struct {
	baseEvent
	SessionID     string `json:"sessionId"`     // Session whose state changed
	PreviousState string `json:"previousState"` // State before this chunk
	NewState      string `json:"newState"`      // State after this chunk
}

// NewSessionStateChangedEvent creates a SessionStateChangedEvent.
func NewSessionStateChangedEvent(sessionID, previousState, newState string, ctx map[string]string) SessionStateChangedEvent {
	return SessionStateChangedEvent{
		baseEvent:     newBaseEvent(TypeSessionStateChanged, ctx),
		SessionID:     sessionID,
		PreviousState: previousState,
		NewState:      newState,
	}
}

// Compile-time checks that every concrete event satisfies the Event interface.
var (
	_ Event = RunStartedEvent{}
	_ Event = RunProgressEvent{}
	_ Event = RunPausedEvent{}
	_ Event = RunResumedEvent{}
	_ Event = RunCompletedEvent{}
	_ Event = RunFailedEvent{}
	_ Event = RunCancelledEvent{}
	_ Event = SessionStateChangedEvent{}
)
