package run

import (
	"fmt"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/vitals/internal/errors"
	"github.com/Iron-Ham/vitals/internal/event"
	"github.com/Iron-Ham/vitals/internal/logging"
)

// Tracker manages the run table and enforces the lifecycle state machine:
// running and paused flip back and forth, and completed, failed, and
// cancelled are terminal with no outgoing edges. All methods are safe for
// concurrent use via an internal mutex; lifecycle events are published
// after the mutation, outside the lock.
type Tracker struct {
	mu    sync.Mutex
	runs  map[string]*Run // run ID -> run
	order []string        // run IDs in start order

	bus    *event.Bus
	logger *logging.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger for tracker diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker creates a run tracker publishing lifecycle events on bus.
// A nil bus disables event publishing.
func NewTracker(bus *event.Bus, opts ...Option) *Tracker {
	t := &Tracker{
		runs:   make(map[string]*Run),
		bus:    bus,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithComponent("run")
	return t
}

// newRunID returns a fresh run identifier.
func newRunID() string {
	return "run_" + uuid.New().String()[:8]
}

// Start registers a new run in the running state and returns its id. Start
// never fails. The context map is copied and sanitized: the reserved runId
// field always holds the run's own id, discarding any caller-supplied
// value, and later mutation of the caller's map does not affect the run.
func (t *Tracker) Start(name string, ctx map[string]string, description string) string {
	id := newRunID()

	runCtx := maps.Clone(ctx)
	if runCtx == nil {
		runCtx = make(map[string]string, 1)
	}
	runCtx[ContextKeyRunID] = id

	r := &Run{
		ID:          id,
		Name:        name,
		Description: description,
		Context:     runCtx,
		State:       StateRunning,
		StartedAt:   time.Now(),
	}

	t.mu.Lock()
	t.runs[id] = r
	t.order = append(t.order, id)
	t.mu.Unlock()

	t.logger.WithRun(id).Info("run started", "name", name)
	t.publish(event.NewRunStartedEvent(id, name, description, runCtx))
	return id
}

// UpdateProgress records a progress fraction and optional message for an
// active run. Finite values are clamped to [0, 1]; NaN and infinities are
// discarded with a warn diagnostic and a nil return, leaving the run
// untouched.
func (t *Tracker) UpdateProgress(id string, progress float64, message string) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("progress update for unknown run")
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, id)
	}
	if r.State.IsTerminal() {
		state := r.State
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("progress update for terminal run", "state", state.String())
		return fmt.Errorf("%w: cannot update progress of %s run %s", errors.ErrInvalidTransition, state, id)
	}
	if math.IsNaN(progress) || math.IsInf(progress, 0) {
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("discarding non-finite progress", "progress", fmt.Sprintf("%v", progress))
		return nil
	}
	r.Progress = clampProgress(progress)
	r.Message = message
	progress = r.Progress
	ctx := r.Context
	t.mu.Unlock()

	t.publish(event.NewRunProgressEvent(id, progress, message, ctx))
	return nil
}

// Pause suspends a running run. Only the running state can be paused.
func (t *Tracker) Pause(id, reason string) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("pause for unknown run")
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, id)
	}
	if r.State != StateRunning {
		state := r.State
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("pause rejected", "state", state.String())
		return fmt.Errorf("%w: cannot pause %s run %s", errors.ErrInvalidTransition, state, id)
	}
	r.State = StatePaused
	r.Reason = reason
	ctx := r.Context
	t.mu.Unlock()

	t.logger.WithRun(id).Info("run paused", "reason", reason)
	t.publish(event.NewRunPausedEvent(id, reason, ctx))
	return nil
}

// Resume returns a paused run to the running state and clears the pause
// reason. Only the paused state can be resumed.
func (t *Tracker) Resume(id string) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("resume for unknown run")
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, id)
	}
	if r.State != StatePaused {
		state := r.State
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("resume rejected", "state", state.String())
		return fmt.Errorf("%w: cannot resume %s run %s", errors.ErrInvalidTransition, state, id)
	}
	r.State = StateRunning
	r.Reason = ""
	ctx := r.Context
	t.mu.Unlock()

	t.logger.WithRun(id).Info("run resumed")
	t.publish(event.NewRunResumedEvent(id, ctx))
	return nil
}

// Complete transitions a run to the completed state, forcing progress to 1
// and recording CompletedAt and Duration exactly once. Completing an
// already-terminal run is a no-op returning nil with a debug diagnostic.
func (t *Tracker) Complete(id string) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("complete for unknown run")
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, id)
	}
	if r.State.IsTerminal() {
		state := r.State
		t.mu.Unlock()
		t.logger.WithRun(id).Debug("complete ignored for terminal run", "state", state.String())
		return nil
	}
	now := time.Now()
	r.State = StateCompleted
	r.Progress = 1
	r.CompletedAt = &now
	r.Duration = now.Sub(r.StartedAt)
	duration := r.Duration
	ctx := r.Context
	t.mu.Unlock()

	t.logger.WithRun(id).Info("run completed", "duration", duration.String())
	t.publish(event.NewRunCompletedEvent(id, duration, ctx))
	return nil
}

// Fail transitions a run to the failed state, recording the error message
// and the terminal timestamps. Failing an already-terminal run is a no-op
// returning nil with a debug diagnostic.
func (t *Tracker) Fail(id, errMsg string) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("fail for unknown run")
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, id)
	}
	if r.State.IsTerminal() {
		state := r.State
		t.mu.Unlock()
		t.logger.WithRun(id).Debug("fail ignored for terminal run", "state", state.String())
		return nil
	}
	now := time.Now()
	r.State = StateFailed
	r.Error = errMsg
	r.CompletedAt = &now
	r.Duration = now.Sub(r.StartedAt)
	duration := r.Duration
	ctx := r.Context
	t.mu.Unlock()

	t.logger.WithRun(id).Warn("run failed", "error", errMsg, "duration", duration.String())
	t.publish(event.NewRunFailedEvent(id, errMsg, duration, ctx))
	return nil
}

// Cancel transitions a run to the cancelled state with an optional reason,
// recording the terminal timestamps. Cancelling an already-terminal run is
// a no-op returning nil with a debug diagnostic.
func (t *Tracker) Cancel(id, reason string) error {
	t.mu.Lock()
	r, ok := t.runs[id]
	if !ok {
		t.mu.Unlock()
		t.logger.WithRun(id).Warn("cancel for unknown run")
		return fmt.Errorf("%w: %s", errors.ErrRunNotFound, id)
	}
	if r.State.IsTerminal() {
		state := r.State
		t.mu.Unlock()
		t.logger.WithRun(id).Debug("cancel ignored for terminal run", "state", state.String())
		return nil
	}
	now := time.Now()
	r.State = StateCancelled
	r.Reason = reason
	r.CompletedAt = &now
	r.Duration = now.Sub(r.StartedAt)
	duration := r.Duration
	ctx := r.Context
	t.mu.Unlock()

	t.logger.WithRun(id).Info("run cancelled", "reason", reason, "duration", duration.String())
	t.publish(event.NewRunCancelledEvent(id, reason, duration, ctx))
	return nil
}

// Get returns a snapshot of the run with the given id.
func (t *Tracker) Get(id string) (Run, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.runs[id]
	if !ok {
		return Run{}, false
	}
	return r.snapshot(), true
}

// All returns snapshots of every tracked run in start order.
func (t *Tracker) All() []Run {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Run, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.runs[id].snapshot())
	}
	return out
}

// Active returns snapshots of all running and paused runs in start order.
func (t *Tracker) Active() []Run {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Run
	for _, id := range t.order {
		if r := t.runs[id]; r.State.IsActive() {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// ByState returns snapshots of all runs in the given state, in start order.
func (t *Tracker) ByState(state State) []Run {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Run
	for _, id := range t.order {
		if r := t.runs[id]; r.State == state {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// ByContext returns snapshots of all runs whose context carries the given
// field with exactly the given value, in start order. Runs lacking the
// field never match, even for an empty value.
func (t *Tracker) ByContext(field, value string) []Run {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Run
	for _, id := range t.order {
		r := t.runs[id]
		if v, ok := r.Context[field]; ok && v == value {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// Status returns a snapshot of the current run counts per state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	var s Status
	s.Total = len(t.runs)
	for _, r := range t.runs {
		switch r.State {
		case StateRunning:
			s.Running++
		case StatePaused:
			s.Paused++
		case StateCompleted:
			s.Completed++
		case StateFailed:
			s.Failed++
		case StateCancelled:
			s.Cancelled++
		}
	}
	return s
}

// ClearFinished removes terminal runs from the table. With a non-nil
// olderThan, only terminal runs whose CompletedAt is before the cutoff are
// removed. Returns the number of runs removed.
func (t *Tracker) ClearFinished(olderThan *time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	kept := t.order[:0]
	for _, id := range t.order {
		r := t.runs[id]
		if r.State.IsTerminal() && (olderThan == nil || (r.CompletedAt != nil && r.CompletedAt.Before(*olderThan))) {
			delete(t.runs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept

	if removed > 0 {
		t.logger.Info("cleared finished runs", "count", removed)
	}
	return removed
}

// ClearAll removes every run regardless of state and returns the count.
func (t *Tracker) ClearAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := len(t.runs)
	t.runs = make(map[string]*Run)
	t.order = nil

	if removed > 0 {
		t.logger.Info("cleared all runs", "count", removed)
	}
	return removed
}

// publish sends an event if a bus is attached. Callers must not hold t.mu.
func (t *Tracker) publish(e event.Event) {
	if t.bus != nil {
		t.bus.Publish(e)
	}
}

// clampProgress bounds finite progress to [0, 1].
func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
