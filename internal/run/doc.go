// Package run tracks long-lived operations through an explicit lifecycle
// state machine.
//
// A run starts in the running state, may flip between running and paused,
// and ends in exactly one of completed, failed, or cancelled. Terminal
// states have no outgoing edges: repeating a terminal transition is an
// idempotent no-op, and every other mutation of a terminal run is rejected
// with ErrInvalidTransition.
//
// The Tracker publishes a typed event for every successful transition
// (run:started, run:progress, run:paused, run:resumed, run:completed,
// run:failed, run:cancelled), each carrying the run's correlation context.
// Runs live in memory only; ClearFinished and ClearAll are the only ways a
// run leaves the table.
package run
