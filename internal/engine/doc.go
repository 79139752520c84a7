// Package engine assembles the vitals components behind a single facade.
//
// An Engine owns one event bus, one run tracker, one session classifier,
// and one profile registry, all sharing a logger. Construction is driven
// by Options, usually derived from the loaded configuration:
//
//	cfg := config.Get()
//	eng, err := engine.New(engine.OptionsFromConfig(cfg))
//	if err != nil {
//		return err
//	}
//	defer eng.Shutdown()
//
//	id := eng.Tracker().Start("index repository", map[string]string{
//		engine.ContextKeySessionID: "sess-1",
//	}, "")
//	eng.Classifier().Track("sess-1", "claude", nil)
//
// Runs started with the ContextKeySessionID context field can be queried
// per session with RunsForSession.
//
// Shutdown stops background watching, clears all runs and sessions, and
// unsubscribes every bus handler. It is idempotent.
package engine
