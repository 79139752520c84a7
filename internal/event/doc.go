// Package event provides a pub-sub event bus for decoupled communication
// between the vitals engine and its observers.
//
// This package enables loose coupling between the run tracker, the stream
// classifier, and external collaborators (IPC bridges, UIs, log sinks) by
// allowing them to communicate through events rather than direct method
// calls. Components can publish events without knowing who will receive
// them, and subscribe to events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType(), Timestamp(), and Context()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The event set is closed: these are the only types the engine publishes.
//
// Run Lifecycle:
//   - [RunStartedEvent]: Emitted when a run is created ("run:started")
//   - [RunProgressEvent]: Emitted on progress updates ("run:progress")
//   - [RunPausedEvent]: Emitted when a run is paused ("run:paused")
//   - [RunResumedEvent]: Emitted when a run resumes ("run:resumed")
//   - [RunCompletedEvent]: Emitted on successful completion ("run:completed")
//   - [RunFailedEvent]: Emitted on failure ("run:failed")
//   - [RunCancelledEvent]: Emitted on cancellation ("run:cancelled")
//
// Session Activity:
//   - [SessionStateChangedEvent]: Emitted when the classifier detects a
//     session activity transition ("session:state-changed")
//
// Every event carries the correlation context of its run or session, a copy
// of which is available through Context(). [Encode] renders any event as a
// flat JSON object (context keys, payload fields, type, timestamp) for log
// sinks and CLI taps.
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Subscriber Bound
//
// Each event type carries a soft subscriber bound ([DefaultMaxSubscribers],
// configurable via [WithMaxSubscribers]). Crossing it logs a warning once per
// crossing; registration always succeeds. The bound exists to surface
// subscription leaks, not to enforce a hard limit.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	unsub := bus.Subscribe(event.TypeRunStarted, func(e event.Event) {
//	    started := e.(event.RunStartedEvent)
//	    log.Printf("Run %s started", started.RunID)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewRunStartedEvent("run_a1b2c3d4", "Work on Issue #42", "", nil))
//
//	// Unsubscribe when done
//	unsub()
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category:action":
//   - run:started, run:progress, run:paused, run:resumed
//   - run:completed, run:failed, run:cancelled
//   - session:state-changed
package event
