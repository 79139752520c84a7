package engine

import (
	"fmt"
	"sync"

	"github.com/Iron-Ham/vitals/internal/classify"
	"github.com/Iron-Ham/vitals/internal/event"
	"github.com/Iron-Ham/vitals/internal/logging"
	"github.com/Iron-Ham/vitals/internal/profile"
	"github.com/Iron-Ham/vitals/internal/run"
)

// ContextKeySessionID is the run context field that links a run to the
// session it belongs to. Callers that set it when starting a run can later
// query those runs with RunsForSession.
const ContextKeySessionID = "sessionId"

// Engine wires the event bus, run tracker, session classifier, and profile
// registry together behind a single facade. All components share one bus
// and one logger, so a subscriber sees run lifecycle events and session
// state changes interleaved in publish order.
type Engine struct {
	bus        *event.Bus
	tracker    *run.Tracker
	classifier *classify.Classifier
	registry   *profile.Registry

	logger *logging.Logger // root logger, shared with all components
	log    *logging.Logger // engine-scoped child

	ownsLogger        bool
	watcher           *profile.Watcher
	unsubscribeEvents func()
	shutdownOnce      sync.Once
}

// New builds an Engine from opts.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	ownsLogger := false
	if logger == nil {
		if opts.LogDir != "" {
			rotation := opts.LogRotation
			if rotation == (logging.RotationConfig{}) {
				rotation = logging.DefaultRotationConfig()
			}
			fileLogger, err := logging.NewLoggerWithRotation(opts.LogDir, opts.LogLevel, rotation)
			if err != nil {
				return nil, fmt.Errorf("failed to create logger: %w", err)
			}
			logger = fileLogger
			ownsLogger = true
		} else {
			logger = logging.NopLogger()
		}
	}

	var busOpts []event.Option
	if opts.MaxSubscribersPerEvent > 0 {
		busOpts = append(busOpts, event.WithMaxSubscribers(opts.MaxSubscribersPerEvent))
	}
	bus := event.NewBus(busOpts...)

	registry := profile.NewRegistry(logger)
	if len(opts.ProfileOverrides) > 0 {
		registry.ApplyOverrides(opts.ProfileOverrides)
	}

	classifierOpts := []classify.Option{classify.WithLogger(logger)}
	if opts.WindowSize > 0 {
		classifierOpts = append(classifierOpts, classify.WithWindowSize(opts.WindowSize))
	}

	e := &Engine{
		bus:        bus,
		tracker:    run.NewTracker(bus, run.WithLogger(logger)),
		classifier: classify.NewClassifier(registry, bus, classifierOpts...),
		registry:   registry,
		logger:     logger,
		log:        logger.WithComponent("engine"),
		ownsLogger: ownsLogger,
	}

	if opts.EventLog {
		e.unsubscribeEvents = bus.SubscribeAll(e.logEvent)
	}

	// Override file watching is best effort: a bad path degrades to the
	// static profiles rather than failing engine construction.
	if opts.ProfileOverridePath != "" {
		watcher, err := profile.NewWatcher(opts.ProfileOverridePath, registry, logger)
		if err == nil {
			err = watcher.Start()
			if err != nil {
				watcher.Stop()
			}
		}
		if err != nil {
			e.log.Warn("profile override watching disabled",
				"path", opts.ProfileOverridePath,
				"error", err)
		} else {
			e.watcher = watcher
		}
	}

	e.log.Debug("engine initialized",
		"window_size", opts.WindowSize,
		"event_log", opts.EventLog,
		"profile_override_path", opts.ProfileOverridePath)

	return e, nil
}

// Bus returns the shared event bus.
func (e *Engine) Bus() *event.Bus {
	return e.bus
}

// Tracker returns the run tracker.
func (e *Engine) Tracker() *run.Tracker {
	return e.tracker
}

// Classifier returns the session classifier.
func (e *Engine) Classifier() *classify.Classifier {
	return e.classifier
}

// Registry returns the agent profile registry.
func (e *Engine) Registry() *profile.Registry {
	return e.registry
}

// Logger returns the root logger shared by all components.
func (e *Engine) Logger() *logging.Logger {
	return e.logger
}

// RunsForSession returns the runs whose context links them to sessionID,
// in start order.
func (e *Engine) RunsForSession(sessionID string) []run.Run {
	return e.tracker.ByContext(ContextKeySessionID, sessionID)
}

// Shutdown stops the profile watcher, drops all tracked runs and sessions,
// and removes every bus subscription so nothing is published afterward.
// If the engine created its own file logger it is closed last. Safe to
// call more than once.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		if e.watcher != nil {
			e.watcher.Stop()
		}
		if e.unsubscribeEvents != nil {
			e.unsubscribeEvents()
		}

		e.classifier.Clear()
		e.tracker.ClearAll()
		e.bus.Clear()

		e.log.Info("engine shut down")
		if e.ownsLogger {
			_ = e.logger.Close()
		}
	})
}

// logEvent mirrors a published event into the debug log.
func (e *Engine) logEvent(ev event.Event) {
	data, err := event.Encode(ev)
	if err != nil {
		e.log.Warn("failed to encode event",
			"event_type", ev.EventType(),
			"error", err)
		return
	}
	e.log.Debug("event published",
		"event_type", ev.EventType(),
		"event", string(data))
}
