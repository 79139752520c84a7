package run

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/vitals/internal/errors"
	"github.com/Iron-Ham/vitals/internal/event"
)

func newTestTracker() (*Tracker, *event.Bus) {
	bus := event.NewBus()
	return NewTracker(bus), bus
}

func collectEvents(bus *event.Bus) *[]event.Event {
	var events []event.Event
	bus.SubscribeAll(func(e event.Event) {
		events = append(events, e)
	})
	return &events
}

// driveTo starts a fresh run and moves it to the given state.
func driveTo(t *testing.T, tr *Tracker, state State) string {
	t.Helper()

	id := tr.Start("job", nil, "")
	var err error
	switch state {
	case StateRunning:
	case StatePaused:
		err = tr.Pause(id, "hold")
	case StateCompleted:
		err = tr.Complete(id)
	case StateFailed:
		err = tr.Fail(id, "boom")
	case StateCancelled:
		err = tr.Cancel(id, "stop")
	}
	if err != nil {
		t.Fatalf("driving run to %s: %v", state, err)
	}
	return id
}

// applyOp invokes one named mutation on the tracker.
func applyOp(tr *Tracker, id, op string) error {
	switch op {
	case "pause":
		return tr.Pause(id, "hold")
	case "resume":
		return tr.Resume(id)
	case "complete":
		return tr.Complete(id)
	case "fail":
		return tr.Fail(id, "boom")
	case "cancel":
		return tr.Cancel(id, "stop")
	case "progress":
		return tr.UpdateProgress(id, 0.5, "halfway")
	}
	panic("unknown op " + op)
}

func TestStart(t *testing.T) {
	tr, bus := newTestTracker()
	events := collectEvents(bus)

	id := tr.Start("Work on Issue #42", map[string]string{"worktreeId": "wt-1"}, "Fix the login bug")

	if !strings.HasPrefix(id, "run_") {
		t.Errorf("id = %q, want run_ prefix", id)
	}

	r, ok := tr.Get(id)
	if !ok {
		t.Fatal("Get() did not find the started run")
	}
	if r.State != StateRunning {
		t.Errorf("State = %s, want %s", r.State, StateRunning)
	}
	if r.Progress != 0 {
		t.Errorf("Progress = %v, want 0", r.Progress)
	}
	if r.Name != "Work on Issue #42" {
		t.Errorf("Name = %q", r.Name)
	}
	if r.Description != "Fix the login bug" {
		t.Errorf("Description = %q", r.Description)
	}
	if r.StartedAt.IsZero() {
		t.Error("StartedAt is zero")
	}
	if r.CompletedAt != nil {
		t.Error("CompletedAt set on a running run")
	}
	if r.Context[ContextKeyRunID] != id {
		t.Errorf("Context[runId] = %q, want %q", r.Context[ContextKeyRunID], id)
	}
	if r.Context["worktreeId"] != "wt-1" {
		t.Errorf("Context[worktreeId] = %q, want wt-1", r.Context["worktreeId"])
	}

	if len(*events) != 1 {
		t.Fatalf("got %d events, want 1", len(*events))
	}
	started, ok := (*events)[0].(event.RunStartedEvent)
	if !ok {
		t.Fatalf("event type %T, want RunStartedEvent", (*events)[0])
	}
	if started.RunID != id || started.Name != "Work on Issue #42" || started.Description != "Fix the login bug" {
		t.Errorf("unexpected started event: %+v", started)
	}
	if started.Context()["worktreeId"] != "wt-1" {
		t.Errorf("event context missing worktreeId")
	}
}

func TestStart_SanitizesContext(t *testing.T) {
	tr, _ := newTestTracker()

	caller := map[string]string{ContextKeyRunID: "spoofed", "worktreeId": "wt-1"}
	id := tr.Start("job", caller, "")

	r, _ := tr.Get(id)
	if r.Context[ContextKeyRunID] != id {
		t.Errorf("Context[runId] = %q, want %q (caller value discarded)", r.Context[ContextKeyRunID], id)
	}
	if caller[ContextKeyRunID] != "spoofed" {
		t.Errorf("caller map mutated: runId = %q", caller[ContextKeyRunID])
	}

	// The run keeps its own copy of the context.
	caller["worktreeId"] = "changed"
	r, _ = tr.Get(id)
	if r.Context["worktreeId"] != "wt-1" {
		t.Errorf("Context[worktreeId] = %q, want wt-1", r.Context["worktreeId"])
	}
}

func TestUpdateProgress(t *testing.T) {
	tr, bus := newTestTracker()
	events := collectEvents(bus)

	id := tr.Start("job", nil, "")
	if err := tr.UpdateProgress(id, 0.5, "halfway"); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}

	r, _ := tr.Get(id)
	if r.Progress != 0.5 {
		t.Errorf("Progress = %v, want 0.5", r.Progress)
	}
	if r.Message != "halfway" {
		t.Errorf("Message = %q, want halfway", r.Message)
	}

	if len(*events) != 2 {
		t.Fatalf("got %d events, want 2", len(*events))
	}
	progress, ok := (*events)[1].(event.RunProgressEvent)
	if !ok {
		t.Fatalf("event type %T, want RunProgressEvent", (*events)[1])
	}
	if progress.Progress != 0.5 || progress.Message != "halfway" {
		t.Errorf("unexpected progress event: %+v", progress)
	}
}

func TestUpdateProgress_Clamps(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{-0.01, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
		{42, 1},
	}

	for _, tt := range tests {
		tr, _ := newTestTracker()
		id := tr.Start("job", nil, "")
		if err := tr.UpdateProgress(id, tt.in, ""); err != nil {
			t.Fatalf("UpdateProgress(%v) error = %v", tt.in, err)
		}
		r, _ := tr.Get(id)
		if r.Progress != tt.want {
			t.Errorf("UpdateProgress(%v): Progress = %v, want %v", tt.in, r.Progress, tt.want)
		}
	}
}

func TestUpdateProgress_NonFiniteDiscarded(t *testing.T) {
	tr, bus := newTestTracker()
	events := collectEvents(bus)

	id := tr.Start("job", nil, "")
	if err := tr.UpdateProgress(id, 0.25, "baseline"); err != nil {
		t.Fatal(err)
	}

	for _, in := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := tr.UpdateProgress(id, in, "junk"); err != nil {
			t.Errorf("UpdateProgress(%v) error = %v, want nil", in, err)
		}
	}

	r, _ := tr.Get(id)
	if r.Progress != 0.25 {
		t.Errorf("Progress = %v after non-finite updates, want 0.25", r.Progress)
	}
	if r.Message != "baseline" {
		t.Errorf("Message = %q after non-finite updates, want baseline", r.Message)
	}

	// started + one real progress event; discarded updates publish nothing.
	if len(*events) != 2 {
		t.Errorf("got %d events, want 2", len(*events))
	}
}

func TestUpdateProgress_PausedRun(t *testing.T) {
	tr, _ := newTestTracker()

	id := driveTo(t, tr, StatePaused)
	if err := tr.UpdateProgress(id, 0.7, ""); err != nil {
		t.Fatalf("UpdateProgress() on paused run error = %v", err)
	}

	r, _ := tr.Get(id)
	if r.Progress != 0.7 {
		t.Errorf("Progress = %v, want 0.7", r.Progress)
	}
}

func TestOperations_NotFound(t *testing.T) {
	tr, _ := newTestTracker()

	for _, op := range []string{"pause", "resume", "complete", "fail", "cancel", "progress"} {
		err := applyOp(tr, "run_missing", op)
		if !errors.Is(err, errors.ErrRunNotFound) {
			t.Errorf("%s on unknown run: error = %v, want ErrRunNotFound", op, err)
		}
	}
}

func TestPauseResume(t *testing.T) {
	tr, bus := newTestTracker()
	events := collectEvents(bus)

	id := tr.Start("job", nil, "")
	if err := tr.Pause(id, "waiting for review"); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	r, _ := tr.Get(id)
	if r.State != StatePaused {
		t.Errorf("State = %s, want %s", r.State, StatePaused)
	}
	if r.Reason != "waiting for review" {
		t.Errorf("Reason = %q, want waiting for review", r.Reason)
	}

	if err := tr.Resume(id); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	r, _ = tr.Get(id)
	if r.State != StateRunning {
		t.Errorf("State = %s after resume, want %s", r.State, StateRunning)
	}
	if r.Reason != "" {
		t.Errorf("Reason = %q after resume, want empty", r.Reason)
	}

	wantTypes := []string{event.TypeRunStarted, event.TypeRunPaused, event.TypeRunResumed}
	if len(*events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(*events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if got := (*events)[i].EventType(); got != want {
			t.Errorf("event[%d] = %s, want %s", i, got, want)
		}
	}
	paused := (*events)[1].(event.RunPausedEvent)
	if paused.Reason != "waiting for review" {
		t.Errorf("paused event Reason = %q", paused.Reason)
	}
}

func TestComplete(t *testing.T) {
	tr, bus := newTestTracker()
	events := collectEvents(bus)

	id := tr.Start("job", nil, "")
	if err := tr.UpdateProgress(id, 0.3, ""); err != nil {
		t.Fatal(err)
	}
	if err := tr.Complete(id); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	r, _ := tr.Get(id)
	if r.State != StateCompleted {
		t.Errorf("State = %s, want %s", r.State, StateCompleted)
	}
	if r.Progress != 1 {
		t.Errorf("Progress = %v, want 1 (forced on complete)", r.Progress)
	}
	if r.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	if r.Duration < 0 {
		t.Errorf("Duration = %v, want >= 0", r.Duration)
	}

	completed := (*events)[len(*events)-1].(event.RunCompletedEvent)
	if completed.RunID != id {
		t.Errorf("completed event RunID = %q, want %q", completed.RunID, id)
	}
	if completed.Duration != r.Duration {
		t.Errorf("completed event Duration = %v, run Duration = %v", completed.Duration, r.Duration)
	}
}

func TestFail_RecordsError(t *testing.T) {
	tr, bus := newTestTracker()
	events := collectEvents(bus)

	id := tr.Start("job", nil, "")
	if err := tr.UpdateProgress(id, 0.4, ""); err != nil {
		t.Fatal(err)
	}
	if err := tr.Fail(id, "connection refused"); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	r, _ := tr.Get(id)
	if r.State != StateFailed {
		t.Errorf("State = %s, want %s", r.State, StateFailed)
	}
	if r.Error != "connection refused" {
		t.Errorf("Error = %q, want connection refused", r.Error)
	}
	if r.Progress != 0.4 {
		t.Errorf("Progress = %v, want 0.4 (failing does not force progress)", r.Progress)
	}
	if r.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	failed := (*events)[len(*events)-1].(event.RunFailedEvent)
	if failed.Error != "connection refused" {
		t.Errorf("failed event Error = %q", failed.Error)
	}
	if failed.Duration != r.Duration {
		t.Errorf("failed event Duration = %v, run Duration = %v", failed.Duration, r.Duration)
	}
}

func TestCancel_RecordsReason(t *testing.T) {
	tr, bus := newTestTracker()
	events := collectEvents(bus)

	id := tr.Start("job", nil, "")
	if err := tr.Cancel(id, "user abort"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	r, _ := tr.Get(id)
	if r.State != StateCancelled {
		t.Errorf("State = %s, want %s", r.State, StateCancelled)
	}
	if r.Reason != "user abort" {
		t.Errorf("Reason = %q, want user abort", r.Reason)
	}
	if r.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	cancelled := (*events)[len(*events)-1].(event.RunCancelledEvent)
	if cancelled.Reason != "user abort" {
		t.Errorf("cancelled event Reason = %q", cancelled.Reason)
	}
}

func TestTransitions_EdgeClosure(t *testing.T) {
	invalid := errors.ErrInvalidTransition

	tests := []struct {
		from      State
		op        string
		wantErr   error
		wantState State
	}{
		{StateRunning, "pause", nil, StatePaused},
		{StateRunning, "resume", invalid, StateRunning},
		{StateRunning, "complete", nil, StateCompleted},
		{StateRunning, "fail", nil, StateFailed},
		{StateRunning, "cancel", nil, StateCancelled},
		{StateRunning, "progress", nil, StateRunning},

		{StatePaused, "pause", invalid, StatePaused},
		{StatePaused, "resume", nil, StateRunning},
		{StatePaused, "complete", nil, StateCompleted},
		{StatePaused, "fail", nil, StateFailed},
		{StatePaused, "cancel", nil, StateCancelled},
		{StatePaused, "progress", nil, StatePaused},

		{StateCompleted, "pause", invalid, StateCompleted},
		{StateCompleted, "resume", invalid, StateCompleted},
		{StateCompleted, "complete", nil, StateCompleted},
		{StateCompleted, "fail", nil, StateCompleted},
		{StateCompleted, "cancel", nil, StateCompleted},
		{StateCompleted, "progress", invalid, StateCompleted},

		{StateFailed, "pause", invalid, StateFailed},
		{StateFailed, "resume", invalid, StateFailed},
		{StateFailed, "complete", nil, StateFailed},
		{StateFailed, "fail", nil, StateFailed},
		{StateFailed, "cancel", nil, StateFailed},
		{StateFailed, "progress", invalid, StateFailed},

		{StateCancelled, "pause", invalid, StateCancelled},
		{StateCancelled, "resume", invalid, StateCancelled},
		{StateCancelled, "complete", nil, StateCancelled},
		{StateCancelled, "fail", nil, StateCancelled},
		{StateCancelled, "cancel", nil, StateCancelled},
		{StateCancelled, "progress", invalid, StateCancelled},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s from %s", tt.op, tt.from), func(t *testing.T) {
			tr, _ := newTestTracker()
			id := driveTo(t, tr, tt.from)

			err := applyOp(tr, id, tt.op)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}

			r, _ := tr.Get(id)
			if r.State != tt.wantState {
				t.Errorf("state = %s, want %s", r.State, tt.wantState)
			}
		})
	}
}

func TestTerminalRunsAreInvariant(t *testing.T) {
	for _, terminal := range []string{"complete", "fail", "cancel"} {
		t.Run(terminal, func(t *testing.T) {
			tr, bus := newTestTracker()
			id := tr.Start("job", map[string]string{"worktreeId": "wt-1"}, "")
			if err := tr.UpdateProgress(id, 0.4, "mid"); err != nil {
				t.Fatal(err)
			}
			if err := applyOp(tr, id, terminal); err != nil {
				t.Fatalf("%s error = %v", terminal, err)
			}

			before, _ := tr.Get(id)
			events := collectEvents(bus)

			for _, op := range []string{"pause", "resume", "complete", "fail", "cancel", "progress"} {
				_ = applyOp(tr, id, op)
			}

			after, _ := tr.Get(id)
			if after.State != before.State {
				t.Errorf("State changed: %s -> %s", before.State, after.State)
			}
			if after.Progress != before.Progress {
				t.Errorf("Progress changed: %v -> %v", before.Progress, after.Progress)
			}
			if after.Message != before.Message {
				t.Errorf("Message changed: %q -> %q", before.Message, after.Message)
			}
			if after.Error != before.Error {
				t.Errorf("Error changed: %q -> %q", before.Error, after.Error)
			}
			if after.Reason != before.Reason {
				t.Errorf("Reason changed: %q -> %q", before.Reason, after.Reason)
			}
			if after.Duration != before.Duration {
				t.Errorf("Duration changed: %v -> %v", before.Duration, after.Duration)
			}
			if !after.CompletedAt.Equal(*before.CompletedAt) {
				t.Errorf("CompletedAt changed: %v -> %v", before.CompletedAt, after.CompletedAt)
			}
			if len(*events) != 0 {
				t.Errorf("terminal run published %d events, want 0", len(*events))
			}
		})
	}
}

func TestQueries(t *testing.T) {
	tr, _ := newTestTracker()

	a := tr.Start("a", map[string]string{"sessionId": "s1"}, "")
	b := tr.Start("b", map[string]string{"sessionId": "s1"}, "")
	c := tr.Start("c", map[string]string{"sessionId": "s2"}, "")
	d := tr.Start("d", nil, "")

	if err := tr.Pause(b, "hold"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Complete(c); err != nil {
		t.Fatal(err)
	}

	all := tr.All()
	if len(all) != 4 {
		t.Fatalf("All() returned %d runs, want 4", len(all))
	}
	wantOrder := []string{a, b, c, d}
	for i, id := range wantOrder {
		if all[i].ID != id {
			t.Errorf("All()[%d].ID = %q, want %q (start order)", i, all[i].ID, id)
		}
	}

	active := tr.Active()
	if len(active) != 3 {
		t.Errorf("Active() returned %d runs, want 3", len(active))
	}
	for _, r := range active {
		if r.ID == c {
			t.Error("Active() included a completed run")
		}
	}

	paused := tr.ByState(StatePaused)
	if len(paused) != 1 || paused[0].ID != b {
		t.Errorf("ByState(paused) = %v, want [%s]", paused, b)
	}

	s1 := tr.ByContext("sessionId", "s1")
	if len(s1) != 2 || s1[0].ID != a || s1[1].ID != b {
		t.Errorf("ByContext(sessionId, s1) returned %d runs, want [a b]", len(s1))
	}
	if got := tr.ByContext("sessionId", "missing"); len(got) != 0 {
		t.Errorf("ByContext(sessionId, missing) returned %d runs, want 0", len(got))
	}
	if got := tr.ByContext("sessionId", ""); len(got) != 0 {
		t.Errorf("ByContext with empty value matched %d runs lacking the field, want 0", len(got))
	}
}

func TestGet_ReturnsCopies(t *testing.T) {
	tr, _ := newTestTracker()

	id := tr.Start("job", map[string]string{"worktreeId": "wt-1"}, "")

	r1, _ := tr.Get(id)
	r1.Name = "mutated"
	r1.Context["worktreeId"] = "mutated"

	r2, _ := tr.Get(id)
	if r2.Name != "job" {
		t.Errorf("Name = %q, table copy was mutated through snapshot", r2.Name)
	}
	if r2.Context["worktreeId"] != "wt-1" {
		t.Errorf("Context[worktreeId] = %q, table copy was mutated through snapshot", r2.Context["worktreeId"])
	}
}

func TestStatusCounts(t *testing.T) {
	tr, _ := newTestTracker()

	driveTo(t, tr, StateRunning)
	driveTo(t, tr, StateRunning)
	driveTo(t, tr, StatePaused)
	driveTo(t, tr, StateCompleted)
	driveTo(t, tr, StateFailed)
	driveTo(t, tr, StateCancelled)

	got := tr.Status()
	want := Status{Total: 6, Running: 2, Paused: 1, Completed: 1, Failed: 1, Cancelled: 1}
	if got != want {
		t.Errorf("Status() = %+v, want %+v", got, want)
	}
}

func TestClearFinished(t *testing.T) {
	tr, _ := newTestTracker()

	driveTo(t, tr, StateCompleted)
	driveTo(t, tr, StateFailed)
	driveTo(t, tr, StateCancelled)
	d := driveTo(t, tr, StateRunning)
	e := driveTo(t, tr, StatePaused)

	n := tr.ClearFinished(nil)
	if n != 3 {
		t.Errorf("ClearFinished(nil) = %d, want 3", n)
	}

	all := tr.All()
	if len(all) != 2 {
		t.Fatalf("%d runs remain, want 2", len(all))
	}
	if all[0].ID != d || all[1].ID != e {
		t.Errorf("remaining runs = [%s %s], want [%s %s]", all[0].ID, all[1].ID, d, e)
	}
}

func TestClearFinished_OlderThan(t *testing.T) {
	tr, _ := newTestTracker()

	a := driveTo(t, tr, StateCompleted)
	ra, _ := tr.Get(a)
	cutoff := ra.CompletedAt.Add(5 * time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	b := driveTo(t, tr, StateFailed)
	c := driveTo(t, tr, StateRunning)

	n := tr.ClearFinished(&cutoff)
	if n != 1 {
		t.Errorf("ClearFinished(cutoff) = %d, want 1", n)
	}
	if _, ok := tr.Get(a); ok {
		t.Error("run finished before cutoff survived")
	}
	if _, ok := tr.Get(b); !ok {
		t.Error("run finished after cutoff was removed")
	}
	if _, ok := tr.Get(c); !ok {
		t.Error("active run was removed")
	}
}

func TestClearAll(t *testing.T) {
	tr, _ := newTestTracker()

	driveTo(t, tr, StateRunning)
	driveTo(t, tr, StateCompleted)
	driveTo(t, tr, StatePaused)

	if n := tr.ClearAll(); n != 3 {
		t.Errorf("ClearAll() = %d, want 3", n)
	}
	if got := tr.Status(); got.Total != 0 {
		t.Errorf("Status().Total = %d after ClearAll, want 0", got.Total)
	}
	if n := tr.ClearAll(); n != 0 {
		t.Errorf("second ClearAll() = %d, want 0", n)
	}
}

func TestFullLifecycle(t *testing.T) {
	bus := event.NewBus()
	events := collectEvents(bus)
	tr := NewTracker(bus)

	id := tr.Start("Work on Issue #42", map[string]string{"worktreeId": "wt-1"}, "")
	if err := tr.UpdateProgress(id, 0.5, "halfway"); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if err := tr.Complete(id); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := tr.Fail(id, "too late"); err != nil {
		t.Errorf("Fail() after Complete = %v, want nil no-op", err)
	}

	r, ok := tr.Get(id)
	if !ok {
		t.Fatal("run vanished")
	}
	if r.State != StateCompleted {
		t.Errorf("State = %s, want %s (late Fail ignored)", r.State, StateCompleted)
	}
	if r.Progress != 1 {
		t.Errorf("Progress = %v, want 1", r.Progress)
	}
	if r.Error != "" {
		t.Errorf("Error = %q, want empty (late Fail ignored)", r.Error)
	}

	wantTypes := []string{event.TypeRunStarted, event.TypeRunProgress, event.TypeRunCompleted}
	if len(*events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(*events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if got := (*events)[i].EventType(); got != want {
			t.Errorf("event[%d] = %s, want %s", i, got, want)
		}
	}
	for i, e := range *events {
		if e.Context()[ContextKeyRunID] != id {
			t.Errorf("event[%d] context runId = %q, want %q", i, e.Context()[ContextKeyRunID], id)
		}
		if e.Context()["worktreeId"] != "wt-1" {
			t.Errorf("event[%d] context missing worktreeId", i)
		}
	}
}

func TestConcurrentLifecycles(t *testing.T) {
	tr := NewTracker(nil)

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			id := tr.Start(fmt.Sprintf("job-%d", i), nil, "")
			_ = tr.UpdateProgress(id, 0.5, "")
			_ = tr.Complete(id)
		})
	}
	wg.Wait()

	got := tr.Status()
	if got.Total != n || got.Completed != n {
		t.Errorf("Status() = %+v, want %d completed of %d", got, n, n)
	}
}
