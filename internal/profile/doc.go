// Package profile holds the per-agent heuristic pattern tables used to
// classify terminal output, and the registry that resolves an agent type to
// its compiled patterns.
//
// Patterns are data, not code: each agent type maps to two ordered lists,
// busy patterns and prompt patterns. A "re:" prefix marks an entry as a
// regular expression; every other entry matches as a case-insensitive
// substring. Invalid regex entries are skipped with a warning at compile
// time, never a failure.
//
// # Main Types
//
//   - [RawPatterns]: Uncompiled busy/prompt pattern lists for one agent type
//   - [Profile]: Compiled, immutable pattern set with Match()
//   - [Verdict]: Match result - busy, prompt, or none
//   - [Registry]: Agent type to profile lookup with built-in defaults
//   - [Override]: User-supplied pattern overrides layered over the built-ins
//   - [Watcher]: fsnotify-based hot reload of an override file
//
// # Matching Semantics
//
// [Profile.Match] checks busy patterns before prompt patterns. The tie-break
// is deliberate: agent tools commonly render an input prompt while a task is
// still running, and reporting working beats flapping to waiting. When
// nothing matches, Match returns [VerdictNone] and the caller keeps the
// previous state.
//
// # Built-in Agent Types
//
// The registry ships tables for claude, gemini, codex, opencode, and shell,
// plus a generic default profile used for unknown agent types. Overrides
// from configuration or an override file are merged per agent type: override
// entries are consulted first, or replace the built-ins entirely when the
// entry sets replace: true.
//
// # Basic Usage
//
//	reg := profile.NewRegistry(logger)
//	p := reg.Get("claude")
//	switch p.Match(tail) {
//	case profile.VerdictBusy:
//	    // agent is working
//	case profile.VerdictPrompt:
//	    // agent is waiting for input
//	}
package profile
