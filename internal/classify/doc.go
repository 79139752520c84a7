// Package classify infers agent session activity from streaming terminal
// output.
//
// Terminal-driving agents do not announce whether they are thinking or
// waiting for input; the only signal is the bytes they write. This package
// keeps a bounded sliding window of ANSI-stripped output per session and
// matches the window tail against the session's agent profile after every
// chunk.
//
// # Main Types
//
//   - Classifier: tracks sessions, ingests output chunks, publishes
//     session:state-changed events on transitions
//   - Window: fixed-capacity byte ring holding the most recent output
//   - SessionState: idle, working, or waiting
//
// # Classification Semantics
//
// A busy pattern match wins over a prompt match and yields working; a
// prompt match alone yields waiting; no match leaves the state unchanged.
// There is no timer that decays working back to idle, so a session that
// goes quiet simply keeps its last classified state until new output says
// otherwise.
//
// Classification is heuristic. Agents redraw their screens, animate
// spinners, and embed prompt-looking text in ordinary output, so the
// published state is a best effort, not a guarantee.
//
// # Basic Usage
//
//	registry := profile.NewRegistry(logger)
//	bus := event.NewBus()
//	c := classify.NewClassifier(registry, bus, classify.WithLogger(logger))
//
//	c.Track("sess-1", "claude", map[string]string{"worktreeId": "wt-1"})
//	c.Ingest("sess-1", chunk)
//	state, _ := c.State("sess-1")
//
// # Thread Safety
//
// All Classifier methods are safe for concurrent use. Chunks for the same
// session are serialized; distinct sessions classify in parallel.
package classify
